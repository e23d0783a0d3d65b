package mw

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// snapshot is a recorded 2xx response.
type snapshot struct {
	status int
	header http.Header
	body   []byte
}

func (s snapshot) replay(w gin.ResponseWriter) {
	for k, v := range s.header {
		w.Header()[k] = v
	}
	w.Header().Set("X-Cache", "HIT")
	w.WriteHeader(s.status)
	w.Write(s.body)
}

// recorder tees the response body into buf.
type recorder struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w recorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w recorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache serves repeated GET requests from store. Entries are keyed by the
// data version as well as the URI, so a bump of version makes every earlier
// entry unreachable. Requests sent with Cache-Control: no-cache go to the
// handler and refresh the entry.
func Cache(store *cache.Cache, ttl time.Duration, version func() uint64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := strconv.FormatUint(version(), 10) + ":" + c.Request.RequestURI
		if c.GetHeader("Cache-Control") != "no-cache" {
			if v, ok := store.Get(key); ok {
				v.(snapshot).replay(c.Writer)
				c.Abort()
				return
			}
		}

		rec := &recorder{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = rec
		c.Next()

		if status := rec.Status(); status >= 200 && status < 300 {
			store.Set(key, snapshot{
				status: status,
				header: rec.Header().Clone(),
				body:   rec.buf.Bytes(),
			}, ttl)
		}
	}
}
