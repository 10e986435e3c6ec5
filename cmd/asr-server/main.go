// @title ASR Webservice API
// @version 1.0
// @description Speech recognition over HTTP: transcription, translation and language detection
// @BasePath /
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"asr-webservice-go/internal/bootstrap"
)

func main() {
	host := flag.String("host", "0.0.0.0", "host for the webservice")
	port := flag.Int("port", 9000, "port for the webservice")
	flag.Parse()

	fmt.Printf("[%s] [INFO] [BOOT] starting asr-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background(), bootstrap.Options{Host: *host, Port: *port}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "asr-server failed: %v\n", err)
		os.Exit(1)
	}
}
