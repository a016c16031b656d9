package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sys/unix"

	"sermoncast/internal/blob"
	"sermoncast/internal/config"
	"sermoncast/internal/deps"
)

const (
	storageTimeout = 10 * time.Second
	kafkaTimeout   = 5 * time.Second
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries needed for the given
// config. Both the daemon and the CLI status command use this list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for transcoding, HLS packaging, thumbnails and waveforms",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Reads source duration for progress reporting",
			Optional:    !cfg.Media.ProbeDuration,
		},
	}
	return deps.Versions(ctx, deps.CheckBinaries(requirements))
}

// CheckStorage verifies the configured publish target. For S3 the bucket is
// probed with HeadBucket; for the filesystem backend the output directory
// must be writable.
func CheckStorage(ctx context.Context, cfg *config.Config) Result {
	const name = "Storage"
	switch cfg.Storage.Backend {
	case config.StorageS3:
		if strings.TrimSpace(cfg.Storage.S3Bucket) == "" {
			return Result{Name: name, Detail: "s3 bucket not configured"}
		}
		checkCtx, cancel := context.WithTimeout(ctx, storageTimeout)
		defer cancel()
		backend, err := blob.NewS3(checkCtx, blob.S3Options{
			Bucket:    cfg.Storage.S3Bucket,
			Region:    cfg.Storage.S3Region,
			Endpoint:  cfg.Storage.S3Endpoint,
			PathStyle: cfg.Storage.S3PathStyle,
		})
		if err != nil {
			return Result{Name: name, Detail: err.Error()}
		}
		if err := backend.Ping(checkCtx); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("bucket unreachable (%v)", err)}
		}
		return Result{Name: name, Passed: true, Detail: "s3://" + cfg.Storage.S3Bucket + " reachable"}
	default:
		return CheckDirectoryAccess(name, cfg.Storage.LocalDir)
	}
}

// CheckKafka dials the first reachable broker.
func CheckKafka(ctx context.Context, brokers []string) Result {
	const name = "Kafka"
	if len(brokers) == 0 {
		return Result{Name: name, Detail: "no brokers configured"}
	}
	var lastErr error
	for _, broker := range brokers {
		dialCtx, cancel := context.WithTimeout(ctx, kafkaTimeout)
		conn, err := kafka.DialContext(dialCtx, "tcp", broker)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return Result{Name: name, Passed: true, Detail: broker + " reachable"}
	}
	return Result{Name: name, Detail: fmt.Sprintf("no broker reachable (%v)", lastErr)}
}
