package store

import "errors"

var (
	ErrRoomExists      = errors.New("room exists")
	ErrRoomNotFound    = errors.New("room not found")
	ErrForbidden       = errors.New("forbidden")
	ErrMessageNotFound = errors.New("message not found")
)
