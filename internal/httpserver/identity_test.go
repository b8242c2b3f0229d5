package httpserver

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIdentityParse(t *testing.T) {
	clk := &testClock{t: time.Date(2024, 7, 1, 18, 0, 0, 0, time.UTC)}
	ids := newIdentity("secret-a", "crossword_token", false)
	ids.now = clk.Now

	tok, exp, err := ids.sign(7, "abcd1234", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !exp.Equal(clk.Now().Add(time.Minute)) {
		t.Fatalf("expiry = %v", exp)
	}

	claims, err := ids.parse(tok)
	if err != nil || claims.PlayerID != 7 || claims.Code != "abcd1234" {
		t.Fatalf("parse = %+v, %v", claims, err)
	}

	clk.Advance(2 * time.Minute)
	claims, err = ids.parse(tok)
	if !errors.Is(err, jwt.ErrTokenExpired) || claims == nil || claims.PlayerID != 7 {
		t.Fatalf("expired parse = %+v, %v", claims, err)
	}

	// An expired token signed with another key must not yield claims.
	other := newIdentity("secret-b", "crossword_token", false)
	other.now = ids.now
	forged, _, err := other.sign(7, "abcd1234", -time.Minute)
	if err != nil {
		t.Fatalf("sign forged: %v", err)
	}
	if claims, err := ids.parse(forged); err == nil || claims != nil {
		t.Fatalf("forged token accepted: %+v, %v", claims, err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, playerClaims{PlayerID: 7, Code: "abcd1234"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := ids.parse(unsigned); err == nil {
		t.Fatal("alg=none token accepted")
	}
}
