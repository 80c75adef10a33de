package service

import "errors"

var (
	ErrInvalidCardUID = errors.New("cardUid is required")
	ErrUnauthorized   = errors.New("terminal credentials rejected")
	ErrInvalidDay     = errors.New("day must be YYYY-MM-DD")
	ErrInvalidEventID = errors.New("event id is required")
)
