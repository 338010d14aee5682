package interceptors

import "errors"

var errNotProto = errors.New("interceptors: response is not a protobuf message")
