package testtool

import (
	"net/http"
	"net/http/pprof"

	"video_rotate_service/pkg/config"
	"video_rotate_service/pkg/logger"

	"go.uber.org/zap"
)

// PprofAddr 只綁本機
const PprofAddr = "127.0.0.1:6060"

// PprofMux /debug/pprof/* endpoints on a private mux
func PprofMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// StartPprof production 環境不啟動
//
//	curl http://127.0.0.1:6060/debug/pprof/
//	go tool pprof http://127.0.0.1:6060/debug/pprof/profile?seconds=30
//	go tool pprof http://127.0.0.1:6060/debug/pprof/heap
func StartPprof() {
	if config.IsProduction() {
		logger.Log.Info("Production environment detected, pprof is disabled.")
		return
	}

	go func() {
		logger.Log.Info("Starting pprof server", zap.String("addr", PprofAddr))
		if err := http.ListenAndServe(PprofAddr, PprofMux()); err != nil {
			logger.Log.Warn("pprof server failed", zap.Error(err))
		}
	}()
}
