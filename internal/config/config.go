/*
Copyright 2026 The Perkeep Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads the room server's configuration from the process
// environment, the way Perkeep's pkg/serverinit reads CAMLI_* variables
// before falling back to defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full set of environment-derived settings for cmd/roomserver.
type Config struct {
	ListenAddr string

	PostgresDSN string

	S3Endpoint        string
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3ForcePathStyle  bool

	FrontendOrigin string
	Production     bool

	SMTPAddr     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SMTPHost     string

	AdminBearerToken string

	RoomMaxFiles          int
	RoomMaxTotalSizeBytes int64

	ActiveWindow      time.Duration
	ReaperInterval    time.Duration
}

// FromEnv populates a Config from the process environment, applying
// sane defaults for anything unset.
func FromEnv() (Config, error) {
	c := Config{
		ListenAddr:            getEnv("LISTEN_ADDR", ":8080"),
		PostgresDSN:           os.Getenv("DATABASE_URL"),
		S3Endpoint:            os.Getenv("S3_ENDPOINT"),
		S3Region:              getEnv("S3_REGION", "us-east-1"),
		S3Bucket:              os.Getenv("S3_BUCKET"),
		S3AccessKeyID:         os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey:     os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3ForcePathStyle:      getEnvBool("S3_FORCE_PATH_STYLE", true),
		FrontendOrigin:        getEnv("FRONTEND_ORIGIN", "http://localhost:3000"),
		Production:            getEnvBool("PRODUCTION", false),
		SMTPAddr:              getEnv("SMTP_ADDR", "localhost:25"),
		SMTPFrom:              getEnv("SMTP_FROM", "no-reply@localhost"),
		SMTPUsername:          os.Getenv("SMTP_USERNAME"),
		SMTPPassword:          os.Getenv("SMTP_PASSWORD"),
		SMTPHost:              os.Getenv("SMTP_HOST"),
		AdminBearerToken:      os.Getenv("ADMIN_BEARER_TOKEN"),
		RoomMaxFiles:          getEnvInt("ROOM_MAX_FILES", 100),
		RoomMaxTotalSizeBytes: getEnvInt64("ROOM_MAX_TOTAL_SIZE_BYTES", 4*1024*1024*1024),
		ActiveWindow:          getEnvDuration("PRESENCE_ACTIVE_WINDOW", 120*time.Second),
		ReaperInterval:        getEnvDuration("REAPER_INTERVAL", time.Hour),
	}
	if c.PostgresDSN == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.S3Bucket == "" {
		return Config{}, fmt.Errorf("config: S3_BUCKET is required")
	}
	return c, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
