package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInitData is returned when WebApp init data fails verification
var ErrInvalidInitData = errors.New("invalid init data")

// initDataMaxAge bounds how old a signed auth_date may be
const initDataMaxAge = 24 * time.Hour

// WebAppUser is the Telegram user embedded in WebApp init data
type WebAppUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// VerifyInitData checks the HMAC signature Telegram puts on WebApp init
// data and returns the embedded user. The signing key is derived from
// the bot token with the fixed "WebAppData" label.
func VerifyInitData(initData, botToken string) (*WebAppUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrInvalidInitData
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return nil, ErrInvalidInitData
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	checkString := strings.Join(pairs, "\n")

	secret := hmacSHA256([]byte(botToken), []byte("WebAppData"))
	want := hex.EncodeToString(hmacSHA256([]byte(checkString), secret))
	if !hmac.Equal([]byte(want), []byte(gotHash)) {
		return nil, ErrInvalidInitData
	}

	if authDate := values.Get("auth_date"); authDate != "" {
		ts, err := strconv.ParseInt(authDate, 10, 64)
		if err != nil || time.Since(time.Unix(ts, 0)) > initDataMaxAge {
			return nil, fmt.Errorf("%w: stale auth_date", ErrInvalidInitData)
		}
	}

	var user WebAppUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID == 0 {
		return nil, ErrInvalidInitData
	}
	return &user, nil
}

func hmacSHA256(data, key []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
