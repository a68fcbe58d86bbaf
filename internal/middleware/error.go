package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/medbook/booking-api/pkg/httputil"
)

// ErrorHandler renders errors that handlers attached with c.Error but did
// not answer themselves.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		for _, e := range c.Errors {
			log.Debug().
				Err(e.Err).
				Str("request_id", c.GetString(ContextRequestID)).
				Str("path", c.Request.URL.Path).
				Msg("Request error")
		}
		httputil.RespondWithError(c, c.Errors.Last().Err)
	}
}
