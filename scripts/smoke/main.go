package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-intake-api/internal/models"
	"github.com/noah-isme/course-intake-api/internal/service"
	"github.com/noah-isme/course-intake-api/pkg/config"
)

type target struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	Role       string `json:"role"`
	StudentID  string `json:"studentId"`
	Body       string `json:"body"`
	Expect     int    `json:"expect"`
	Critical   bool   `json:"critical"`
	ExpectData bool   `json:"expectData"`
}

type targetFile struct {
	Targets []target `json:"targets"`
}

type result struct {
	Target   target
	Status   int
	HasData  bool
	Duration time.Duration
	Error    error
}

func (r result) ok() bool {
	if r.Error != nil || r.Status != r.Target.Expect {
		return false
	}
	return !r.Target.ExpectData || r.HasData
}

type tokenIssuer interface {
	IssueToken(userID string, role models.UserRole, studentID string) (string, time.Time, error)
}

func main() {
	var (
		base        string
		targetsPath string
		timeout     time.Duration
	)
	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "smoke", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	auth := service.NewAuthService(zap.NewNop(), service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: 5 * time.Minute,
		Issuer:            cfg.JWT.Issuer,
	})
	client := &http.Client{Timeout: timeout}

	results := make([]result, 0, len(targets))
	breaking, optional := 0, 0
	for _, tgt := range targets {
		res := check(client, auth, base, tgt)
		if !res.ok() {
			if tgt.Critical {
				breaking++
			} else {
				optional++
			}
		}
		results = append(results, res)
	}

	printReport(os.Stdout, results)
	fmt.Printf("Breaking failures: %d, Optional failures: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file targetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	for i := range file.Targets {
		if file.Targets[i].Expect == 0 {
			file.Targets[i].Expect = http.StatusOK
		}
	}
	return file.Targets, nil
}

func check(client *http.Client, auth tokenIssuer, base string, tgt target) result {
	res := result{Target: tgt}
	req, err := buildRequest(auth, base, tgt)
	if err != nil {
		res.Error = err
		return res
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err
		return res
	}
	defer resp.Body.Close() //nolint:errcheck

	res.Status = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Error = fmt.Errorf("read body: %w", err)
		return res
	}
	res.HasData = hasData(body)
	return res
}

func buildRequest(auth tokenIssuer, base string, tgt target) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var body io.Reader
	if tgt.Body != "" {
		body = strings.NewReader(tgt.Body)
	}
	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, body)
	if err != nil {
		return nil, err
	}
	if tgt.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if tgt.Role != "" {
		if auth == nil {
			return nil, errors.New("target needs a token but no issuer is configured")
		}
		token, _, err := auth.IssueToken("smoke-check", models.UserRole(strings.ToUpper(tgt.Role)), tgt.StudentID)
		if err != nil {
			return nil, fmt.Errorf("issue token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// hasData reports whether body is an envelope carrying a non-empty data field.
func hasData(body []byte) bool {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	trimmed := strings.TrimSpace(string(envelope.Data))
	return trimmed != "" && trimmed != "null" && trimmed != "[]" && trimmed != "{}"
}

func printReport(w io.Writer, results []result) {
	fmt.Fprintln(w, "Smoke Check Report")
	fmt.Fprintln(w, "==================")
	for _, res := range results {
		status := "OK"
		switch {
		case res.Error != nil:
			status = "ERROR"
		case !res.ok():
			status = "FAIL"
		}
		fmt.Fprintf(w, "[%s] %s %s\n", status, res.Target.Method, res.Target.Path)
		if res.Error != nil {
			fmt.Fprintf(w, "  Error: %v\n", res.Error)
			continue
		}
		fmt.Fprintf(w, "  Status: %d (expected %d) in %s | data: %t | critical: %t\n",
			res.Status, res.Target.Expect, res.Duration, res.HasData, res.Target.Critical)
	}
}
