package api

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"

	"github.com/alireza-hadizadeh/socket-app/internal/auth"
	"github.com/alireza-hadizadeh/socket-app/internal/gateway"
)

// handshakeApiKey pulls the bearer credential from the query string or
// the Authorization header. An empty result means an anonymous
// connection, not an error.
func handshakeApiKey(r *http.Request) string {
	if key := r.URL.Query().Get("apiKey"); key != "" {
		return key
	}

	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}

	return ""
}

// serveWs performs the gateway handshake. The credential is resolved
// before the transport is upgraded, so a rejected handshake never gets
// a websocket, a registry entry or an audit row.
func (s *SocketApp) serveWs(w http.ResponseWriter, r *http.Request) {
	if s.gw.Stopped() {
		errResp := NewServiceUnavailableError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var identity gateway.Identity

	if key := handshakeApiKey(r); key != "" {
		apiKey, err := s.auth.ResolveAPIKey(key)
		if err != nil {
			if errors.Is(err, auth.ErrApiKeyInvalid) {
				s.log.Printf("invalid api key attempt from %s", r.RemoteAddr)
				errResp := NewUnauthorizedError("Invalid API key")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}

			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		user, err := s.auth.GetUser(apiKey.UserId)
		if err != nil {
			if errors.Is(err, auth.ErrUserInactive) {
				s.log.Printf("inactive user %d attempted connection", apiKey.UserId)
				errResp := NewUnauthorizedError("User account inactive")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}

			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.auth.TouchAPIKey(key)

		identity = gateway.Identity{
			Authenticated: true,
			UserId:        user.Id,
			Username:      user.Username,
			Role:          user.Role,
			ApiKey:        key,
		}
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || !s.production {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	socketId, err := shortid.Generate()
	if err != nil {
		s.log.Println("error generating socket id:", err)
		conn.Close()
		return
	}

	client := gateway.NewClient(socketId, identity, conn, s.gw, s.log)

	if !s.gw.RegisterClient(client) {
		s.log.Printf("gateway stopped, closing socket %q", socketId)
		conn.Close()
		return
	}

	go client.Write()
	go client.Read()
}
