package http

const (
	StatusOK                  uint16 = 200
	StatusNotFound            uint16 = 404
	StatusInternalServerError uint16 = 500
)
