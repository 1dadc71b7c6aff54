package handler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"civicvoice/backend/internal/models"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const (
	authCookie  = "auth_token"
	stateCookie = "oauth_state"
	tokenTTL    = 72 * time.Hour
	issuer      = "civicvoice"
)

// contextUserKey is where RequireAuth stores the loaded user.
const contextUserKey = "currentUser"

// issueJWT signs a session token for a user ID.
func (h *Handler) issueJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(tokenTTL).Unix(),
		"iat": time.Now().Unix(),
		"iss": issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

// parseJWT validates a session token and returns the user ID.
func (h *Handler) parseJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(h.cfg.JWTSecret), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// tokenFromRequest reads the session token from the auth cookie or a
// Bearer header. The header form serves non-browser clients.
func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(authCookie); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// RequireAuth parses the session token and loads the user. Failure is
// always 401; 403 is reserved for ownership violations further down.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		userID, err := h.parseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		user, err := h.store.GetUserByID(userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}
		c.Set(contextUserKey, user)
		c.Next()
	}
}

// currentUser returns the user loaded by RequireAuth.
func currentUser(c *gin.Context) *models.User {
	return c.MustGet(contextUserKey).(*models.User)
}

// Login starts the OAuth authorization-code flow.
func (h *Handler) Login(c *gin.Context) {
	if h.oauth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "identity provider is not configured"})
		return
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		h.respondError(c, err)
		return
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	c.SetCookie(stateCookie, state, 300, "/", h.cfg.CookieDomain, h.cfg.CookieSecure, true)
	c.Redirect(http.StatusTemporaryRedirect, h.oauth.AuthCodeURL(state))
}

// userInfo is the subset of the identity provider's userinfo reply we use.
type userInfo struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Callback finishes the OAuth flow: verify state, exchange the code,
// fetch the user profile, upsert the user and set the session cookie.
func (h *Handler) Callback(c *gin.Context) {
	if h.oauth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "identity provider is not configured"})
		return
	}

	expected, err := c.Cookie(stateCookie)
	if err != nil || expected == "" || c.Query("state") != expected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "oauth state mismatch"})
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", h.cfg.CookieDomain, h.cfg.CookieSecure, true)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
		return
	}

	token, err := h.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		h.log.Warn().Err(err).Msg("oauth code exchange failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "code exchange failed"})
		return
	}

	info, err := h.fetchUserInfo(c, token)
	if err != nil {
		h.log.Warn().Err(err).Msg("userinfo fetch failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch user profile"})
		return
	}
	if info.Sub == "" {
		c.JSON(http.StatusBadGateway, gin.H{"error": "identity provider returned no subject"})
		return
	}

	user, err := h.store.UpsertOAuthUser(info.Sub, info.Name, info.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}

	session, err := h.issueJWT(user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.SetCookie(authCookie, session, int(tokenTTL.Seconds()), "/", h.cfg.CookieDomain, h.cfg.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) fetchUserInfo(c *gin.Context, token *oauth2.Token) (*userInfo, error) {
	client := h.oauth.Client(c.Request.Context(), token)
	resp, err := client.Get(h.cfg.OAuthUserInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("userinfo endpoint returned %d: %s", resp.StatusCode, body)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

// AuthCheck reports the session's user, or 401.
func (h *Handler) AuthCheck(c *gin.Context) {
	token := tokenFromRequest(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"isAuthenticated": false})
		return
	}
	userID, err := h.parseJWT(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"isAuthenticated": false})
		return
	}
	user, err := h.store.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"isAuthenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"isAuthenticated": true, "user": user})
}

// Logout clears the session cookie.
func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie(authCookie, "", -1, "/", h.cfg.CookieDomain, h.cfg.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
