package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"cdbs/internal/config"
	"cdbs/internal/services"
	"cdbs/internal/services/cdbsapi"
)

const apiCheckName = "CDBS API"

// CheckAPI verifies that the GraphQL endpoint answers with the configured
// token. It uses a single attempt bounded by timeout.
func CheckAPI(ctx context.Context, cfg cdbsapi.Config, timeout time.Duration, opts ...cdbsapi.Option) Result {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return Result{Name: apiCheckName, Detail: "missing endpoint"}
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return Result{Name: apiCheckName, Detail: "missing token"}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := cdbsapi.NewClient(cfg, opts...)
	if err != nil {
		return Result{Name: apiCheckName, Detail: err.Error()}
	}
	if err := client.Ping(checkCtx); err != nil {
		return Result{Name: apiCheckName, Detail: summarizeAPIError(err)}
	}
	return Result{Name: apiCheckName, Passed: true, Detail: fmt.Sprintf("%s (reachable)", cfg.Endpoint)}
}

// CheckAPIFromConfig runs CheckAPI with the configured endpoint and request timeout.
func CheckAPIFromConfig(ctx context.Context, cfg *config.Config) Result {
	if cfg == nil {
		return Result{Name: apiCheckName, Detail: "Unknown"}
	}
	return CheckAPI(ctx, cdbsapi.ConfigFrom(cfg), cfg.RequestTimeout())
}

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

// CheckReadable verifies that path is a regular file the process can read.
func CheckReadable(path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: path, Detail: "does not exist"}
		}
		return Result{Name: path, Detail: fmt.Sprintf("stat: %v", err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: path, Detail: "is not a regular file"}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: path, Detail: fmt.Sprintf("not readable: %v", err)}
	}
	return Result{Name: path, Passed: true, Detail: "readable"}
}

// CheckFiles returns a validation error naming every path that is not readable.
func CheckFiles(paths []string) error {
	var problems []string
	for _, path := range paths {
		if r := CheckReadable(path); !r.Passed {
			problems = append(problems, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return services.Wrap(services.ErrValidation, "preflight", "check files",
		fmt.Sprintf("%d file(s) cannot be read: %s", len(problems), strings.Join(problems, "; ")), nil)
}

func summarizeAPIError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, services.ErrTimeout):
		return "request timed out (API unresponsive)"
	case errors.Is(err, services.ErrUnauthorized):
		return "auth failed (invalid token)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out (API unreachable)"
	}
	return err.Error()
}
