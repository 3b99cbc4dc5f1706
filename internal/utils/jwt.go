package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func parseUnverifiedClaims(tokenString string) (jwt.MapClaims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ParseUserIDFromJWT returns the subject of an access token without
// verifying its signature; the server remains the only verifier. A numeric
// "user_id" claim is accepted when the subject is missing.
func ParseUserIDFromJWT(tokenString string) (string, error) {
	claims, err := parseUnverifiedClaims(tokenString)
	if err != nil {
		return "", err
	}

	sub, err := claims.GetSubject()
	if err == nil && sub != "" {
		return sub, nil
	}

	switch v := claims["user_id"].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	}
	return "", errors.New("token carries no user id")
}

// ParseExpiryFromJWT returns the exp claim of an access token without
// verifying its signature.
func ParseExpiryFromJWT(tokenString string) (time.Time, error) {
	claims, err := parseUnverifiedClaims(tokenString)
	if err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errors.New("token carries no expiry")
	}
	return exp.Time, nil
}
