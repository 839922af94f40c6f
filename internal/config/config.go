package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ImageEngineDocker    = "docker"
	ImageEngineDockerAPI = "docker-api"
	ImageEngineOCI       = "oci"

	ClusterBackendClientGo = "client-go"
	ClusterBackendKubectl  = "kubectl"
)

type Registry struct {
	URL      string
	User     string
	Password string
}

type Config struct {
	HTTPPort          string
	ClusterDomain     string
	DomainPlaceholder string
	PublicURL         string
	ConsoleURL        string
	SavePath          string
	MaxUploadBytes    int64

	Registry           Registry
	SourceRegistry     Registry
	InsecureRegistries []string
	ImageEngine        string
	DockerPath         string

	ClusterBackend string
	KubeconfigPath string
	KubectlPath    string

	ResourceThreshold     float64
	ResourceCheckInterval time.Duration
	PriorityLabel         string
	PriorityMin           int
	PauseTimeout          time.Duration

	DatabaseURL string
}

func Load() *Config {
	port := getEnv("HTTP_PORT", "5002")
	domain := getEnv("CLUSTER_DOMAIN", "localhost")

	target := Registry{
		URL:      getEnv("REGISTRY_URL", "sealos.hub:5000"),
		User:     os.Getenv("REGISTRY_USER"),
		Password: os.Getenv("REGISTRY_PASS"),
	}
	source := Registry{
		URL:      getEnv("SOURCE_REGISTRY_URL", target.URL),
		User:     getEnv("SOURCE_REGISTRY_USER", target.User),
		Password: getEnv("SOURCE_REGISTRY_PASS", target.Password),
	}

	return &Config{
		HTTPPort:          port,
		ClusterDomain:     domain,
		DomainPlaceholder: getEnv("DOMAIN_PLACEHOLDER", "CLUSTER_DOMAIN"),
		PublicURL:         getEnv("PUBLIC_URL", "http://"+domain+":"+port),
		ConsoleURL:        getEnv("CONSOLE_URL", "http://"+domain+":32293"),
		SavePath:          getEnv("SAVE_PATH", "/data/bundles"),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<30)),

		Registry:           target,
		SourceRegistry:     source,
		InsecureRegistries: splitCSV(os.Getenv("INSECURE_REGISTRIES")),
		ImageEngine:        getEnv("IMAGE_ENGINE", ImageEngineDocker),
		DockerPath:         getEnv("DOCKER_PATH", "docker"),

		ClusterBackend: getEnv("CLUSTER_BACKEND", ClusterBackendClientGo),
		KubeconfigPath: getEnv("KUBECONFIG", ""),
		KubectlPath:    getEnv("KUBECTL_PATH", "kubectl"),

		ResourceThreshold:     getEnvFloat("RESOURCE_THRESHOLD", 70),
		ResourceCheckInterval: getEnvDuration("RESOURCE_CHECK_INTERVAL", time.Minute),
		PriorityLabel:         getEnv("PRIORITY_LABEL", "deploy.cloud.sealos.io/priority"),
		PriorityMin:           getEnvInt("PRIORITY_MIN", 1),
		PauseTimeout:          getEnvDuration("PAUSE_TIMEOUT", 30*time.Second),

		DatabaseURL: os.Getenv("DATABASE_URL"),
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			result = append(result, v)
		}
	}
	return result
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// 解析失败时使用默认值并打印警告，启动不中断。

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		slog.Warn("invalid integer env, using default", "key", key, "value", v, "default", defaultVal)
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		slog.Warn("invalid number env, using default", "key", key, "value", v, "default", defaultVal)
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		slog.Warn("invalid duration env, using default", "key", key, "value", v, "default", defaultVal)
		return defaultVal
	}
	return d
}
