package middleware

import (
	"crypto/hmac"
	"net/http"
)

const adminKeyHeader = "X-Admin-Key"

// AdminMiddleware закрывает административные маршруты проверкой ключа в
// заголовке X-Admin-Key. Сравнение ключей выполняется за постоянное время.
type AdminMiddleware struct {
	key []byte
}

// NewAdminMiddleware создаёт middleware с указанным административным ключом.
// Пустой ключ полностью запрещает доступ к защищённым маршрутам.
func NewAdminMiddleware(key string) *AdminMiddleware {
	return &AdminMiddleware{key: []byte(key)}
}

// Middleware проверяет заголовок административного ключа.
func (a *AdminMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := []byte(r.Header.Get(adminKeyHeader))
		if len(a.key) == 0 || !hmac.Equal(presented, a.key) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
