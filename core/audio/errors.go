package audio

import "errors"

// ErrDeviceUnavailable reports that the runtime has no usable audio device.
var ErrDeviceUnavailable = errors.New("audio device unavailable")
