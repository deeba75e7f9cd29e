package main

import (
	"testing"

	"github.com/fdg312/coach-nutrition/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestValidateProductionConfig(t *testing.T) {
	local := &config.Config{Env: "local", AuthMode: config.AuthModeDev, JWTSecret: "change_me", AuthRequired: true}
	assert.NoError(t, validateProductionConfig(local))

	prod := &config.Config{Env: "prod", DatabaseURL: "postgres://db", AuthMode: config.AuthModeDev, AuthRequired: true, JWTSecret: "s3cret"}
	assert.NoError(t, validateProductionConfig(prod))

	defaultSecret := *prod
	defaultSecret.JWTSecret = "change_me"
	assert.ErrorContains(t, validateProductionConfig(&defaultSecret), "JWT_SECRET")

	openDev := *prod
	openDev.AuthRequired = false
	assert.ErrorContains(t, validateProductionConfig(&openDev), "AUTH_MODE=dev")

	noDB := *prod
	noDB.DatabaseURL = ""
	assert.ErrorContains(t, validateProductionConfig(&noDB), "DATABASE_URL")

	s3 := &config.Config{Env: "local", Blob: config.BlobConfig{Mode: config.BlobModeS3}}
	assert.ErrorContains(t, validateProductionConfig(s3), "S3_BUCKET")
}

func TestBannerHelpers(t *testing.T) {
	assert.Equal(t, "not set", setOrNot("  "))
	assert.Equal(t, "set", setOrNot("x"))

	assert.Equal(t, "not set", secretStatus("", "change_me"))
	assert.Contains(t, secretStatus("change_me", "change_me"), "DEFAULT")
	assert.Equal(t, "set (custom)", secretStatus("abc", "change_me"))

	assert.Equal(t, "not set (will use in-memory storage)", describeDBURL("", ""))
	assert.Equal(t, "set (via DATABASE_URL_POOLED)", describeDBURL("postgres://p", "postgres://p"))
	assert.Equal(t, "set", describeDBURL("postgres://u", "postgres://p"))
}
