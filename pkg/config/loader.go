package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvInfo 服務名稱、yaml 與 log 路徑 from .env
type EnvInfo struct {
	RotateService string
	RotateWorker  string

	RotateServiceYAMLPath string
	RotateWorkerYAMLPath  string

	RotateServiceLogPath string
	RotateWorkerLogPath  string
}

var (
	// EnvConfig 啟動時由 .env 載入
	EnvConfig = initEnv()
	envConfig EnvInfo
	once      sync.Once
	env       string
)

func initEnv() EnvInfo {
	once.Do(func() {
		path, err := GetPath(".env", 5)
		if err != nil {
			log.Printf("Warning: Could not get .env path: %v", err)
		} else if err := godotenv.Load(path); err != nil {
			log.Printf("Warning: Could not load .env file: %v", err)
		}

		env = os.Getenv("ENV")

		envConfig = EnvInfo{
			RotateService: getenv("ROTATE_SERVICE", "rotate_service"),
			RotateWorker:  getenv("ROTATE_WORKER", "rotate_worker"),

			RotateServiceYAMLPath: getenv("ROTATE_SERVICE_YAML", "./config"),
			RotateWorkerYAMLPath:  getenv("ROTATE_WORKER_YAML", "./config"),

			RotateServiceLogPath: getenv("ROTATE_SERVICE_LOG", "./logs"),
			RotateWorkerLogPath:  getenv("ROTATE_WORKER_LOG", "./logs"),
		}
	})

	return envConfig
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// IsProduction check run env
func IsProduction() bool {
	return env == "production"
}

// IsLocal check run env
func IsLocal() bool {
	return env == "local"
}

// LoadConfig 加載配置，失敗直接結束程式
func LoadConfig[T any](serviceName string, configPath string) T {
	cfg, err := TryLoadConfig[T](serviceName, configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	return cfg
}

// TryLoadConfig 讀取 {configPath}/{serviceName}.yaml，先展開 ${ENV} 佔位符再解構到 T
func TryLoadConfig[T any](serviceName string, configPath string) (T, error) {
	var cfg T

	v := viper.New()
	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	rawConfig, err := os.ReadFile(v.ConfigFileUsed())
	if err != nil {
		return cfg, fmt.Errorf("read raw config file: %w", err)
	}

	expandedConfig := os.ExpandEnv(string(rawConfig))
	if err := v.ReadConfig(bytes.NewBufferString(expandedConfig)); err != nil {
		return cfg, fmt.Errorf("read expanded config: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// GetRedisSetting get redis sentinel setting from .env
// 沒有 REDIS_SENTINEL*_IP 時回傳空 slice，呼叫端改用單機連線
func GetRedisSetting() (string, []string) {
	var sentinelAddrs []string

	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]

		if strings.HasPrefix(key, "REDIS_SENTINEL") && strings.HasSuffix(key, "_IP") {
			portKey := strings.Replace(key, "_IP", "_PORT", 1)
			if port := os.Getenv(portKey); port != "" {
				sentinelAddrs = append(sentinelAddrs, fmt.Sprintf("%s:%s", value, port))
			}
		}
	}

	return getenv("REDIS_MASTER_NAME", "mymaster"), sentinelAddrs
}

// GetPath use fileName loop maxCount find file path
func GetPath(fileName string, maxCount int) (string, error) {
	path := "./" + fileName

	for i := 0; i < maxCount; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = "../" + path
	}
	return "", errors.New(fileName + " can't find path")
}
