package router

import (
	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/env"
)

var CORSOrigin string
var GZipLevel int

func init() {
	// HTTP_CORS_ORIGIN: default "*" (allow all)
	CORSOrigin = env.GetEnvStringOrDefault("HTTP_CORS_ORIGIN", "*")

	// HTTP_GZIP_LEVEL: default 1
	GZipLevel = env.GetEnvIntOrDefault("HTTP_GZIP_LEVEL", 1)
}
