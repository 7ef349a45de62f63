package constants

import "github.com/go-playground/validator/v10"

type ContextKey string

const (
	TxKey        ContextKey = "tx"
	PoolKey      ContextKey = "pool"
	LoggerKey    ContextKey = "logger"
	RequestStart ContextKey = "request_start"
	RequestIDKey ContextKey = "request_id"
)

// Validate is shared so struct validation caches are built once per process.
var Validate = validator.New(validator.WithRequiredStructEnabled())
