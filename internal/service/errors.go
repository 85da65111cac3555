package service

import "errors"

var ErrInvalidPayloadType = errors.New("service: payload did not decode to the expected request type")
