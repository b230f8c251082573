package http

import (
	"mime"
	"net/http"

	"github.com/utafrali/ecommerce-accounts/pkg/httputil"
)

// maxBodyBytes caps request bodies on the JSON routes.
const maxBodyBytes = 1 << 20

// ContentTypeJSON rejects bodies declared as anything other than JSON with a
// 415. Requests without a Content-Type pass through and fail decoding if the
// body is not JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "" {
			mediaType, _, err := mime.ParseMediaType(ct)
			if err != nil || mediaType != "application/json" {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
