package registry

// ASR is the global speech-recognition engine registry. Backends register
// themselves via init().
var ASR = New()
