package utils

import (
	"os"
	"strconv"
	"strings"

	"github.com/strataworks/chainrisk-backend/internal/logger"
)

func GetEnv(name, def string, log *logger.Logger) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		if log != nil {
			log.Debug("Env var not set, using default", "name", name, "default", def)
		}
		return def
	}
	return v
}

func GetEnvAsInt(name string, def int, log *logger.Logger) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		if log != nil {
			log.Warn("Env var not an int, using default", "name", name, "value", v, "default", def)
		}
		return def
	}
	return i
}

func GetEnvAsFloat(name string, def float64, log *logger.Logger) float64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		if log != nil {
			log.Warn("Env var not a float, using default", "name", name, "value", v, "default", def)
		}
		return def
	}
	return f
}
