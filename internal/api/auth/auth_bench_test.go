package auth

import (
	"testing"
	"time"

	"github.com/greenbasket/garden-backend/config"
)

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := HashPassword("password123"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCheckPassword(b *testing.B) {
	hash, err := HashPassword("password123")
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		CheckPassword("password123", hash)
	}
}

func BenchmarkIssueAccessToken(b *testing.B) {
	issuer, err := NewTokenIssuer(config.JWTConfig{
		SecretKey:      "bench-secret",
		AccessTokenTTL: 15 * time.Minute,
	})
	if err != nil {
		b.Fatal(err)
	}
	user := testUser()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := issuer.IssueAccessToken(user); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParseRefreshToken(b *testing.B) {
	issuer, err := NewTokenIssuer(config.JWTConfig{
		SecretKey:       "bench-secret",
		RefreshTokenTTL: time.Hour,
	})
	if err != nil {
		b.Fatal(err)
	}
	token, err := issuer.IssueRefreshToken(testUser())
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := issuer.ParseRefreshToken(token); err != nil {
			b.Fatal(err)
		}
	}
}
