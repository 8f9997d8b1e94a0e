//go:build ignore

// build.go - FundScope Build System
// Usage: go run build.go [-target=TARGET]
// Targets: all, web, funding-report, test, clean, release

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

const (
	module         = "fundscope"
	contractsPkg   = module + "/pkg/contracts"
	defaultDistDir = "dist"
)

// BuildContext holds configuration for the build process
type BuildContext struct {
	Verbose bool
	DistDir string
	GOOS    string
	GOARCH  string
}

var (
	// key = source dir under cmd/, value = output name without extension
	executables = map[string]string{
		"web":            "fundscope",
		"funding-report": "funding-report",
	}

	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	dist := flag.String("dist", defaultDistDir, "Output directory")
	flag.Parse()

	printHeader()
	startTime := time.Now()

	ctx := &BuildContext{
		Verbose: *verbose,
		DistDir: *dist,
		GOOS:    envOr("GOOS", runtime.GOOS),
		GOARCH:  envOr("GOARCH", runtime.GOARCH),
	}

	switch *target {
	case "all":
		buildAll(ctx)
	case "web", "funding-report":
		buildExecutable(*target, ctx)
	case "test":
		runTests(ctx.Verbose)
	case "clean":
		clean(ctx)
	case "release":
		buildRelease(ctx)
	default:
		showHelp()
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Build completed in %s", time.Since(startTime).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "        FundScope - Build System           " + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println()
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func printWarning(msg string) {
	fmt.Printf("%s[WARNING]%s %s\n", colorYellow, colorReset, msg)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// gitOutput runs a git query, returning "unknown" outside a checkout.
func gitOutput(args ...string) string {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func ldflags() string {
	return strings.Join([]string{
		"-s -w",
		fmt.Sprintf("-X %s.BuildTime=%s", contractsPkg, time.Now().UTC().Format(time.RFC3339)),
		fmt.Sprintf("-X %s.GitCommit=%s", contractsPkg, gitOutput("rev-parse", "--short", "HEAD")),
		fmt.Sprintf("-X %s.GitBranch=%s", contractsPkg, gitOutput("rev-parse", "--abbrev-ref", "HEAD")),
	}, " ")
}

func buildAll(ctx *BuildContext) {
	printInfo("Building all executables...")
	if err := os.MkdirAll(ctx.DistDir, 0755); err != nil {
		printError(fmt.Sprintf("Failed to create %s: %v", ctx.DistDir, err))
		os.Exit(1)
	}

	names := make([]string, 0, len(executables))
	for name := range executables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		buildExecutable(name, ctx)
	}

	copyConfigFiles(ctx)
	printSuccess("All executables built successfully!")
}

func buildExecutable(name string, ctx *BuildContext) {
	exeName, ok := executables[name]
	if !ok {
		printError(fmt.Sprintf("Unknown executable: %s", name))
		os.Exit(1)
	}
	if ctx.GOOS == "windows" {
		exeName += ".exe"
	}

	printInfo(fmt.Sprintf("Building %s for %s/%s...", name, ctx.GOOS, ctx.GOARCH))
	outputPath := filepath.Join(ctx.DistDir, exeName)

	args := []string{"build", "-trimpath", "-ldflags", ldflags(), "-o", outputPath, "./cmd/" + name}
	if ctx.Verbose {
		args = append([]string{"build", "-v"}, args[1:]...)
	}

	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(), "GOOS="+ctx.GOOS, "GOARCH="+ctx.GOARCH, "CGO_ENABLED=0")
	cmd.Stderr = os.Stderr
	if ctx.Verbose {
		fmt.Printf("Running: go %s\n", strings.Join(args, " "))
		cmd.Stdout = os.Stdout
	}

	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Failed to build %s: %v", name, err))
		os.Exit(1)
	}

	if info, err := os.Stat(outputPath); err == nil {
		sizeMB := float64(info.Size()) / 1024 / 1024
		printSuccess(fmt.Sprintf("Built %s (%.1f MB)", exeName, sizeMB))
	}
}

func runTests(verbose bool) {
	printInfo("Running tests...")
	args := []string{"test", "-race", "-count=1", "./..."}
	if verbose {
		args = append(args, "-v")
	}

	cmd := exec.Command("go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Tests failed: %v", err))
		os.Exit(1)
	}
	printSuccess("All tests passed")
}

func clean(ctx *BuildContext) {
	printInfo(fmt.Sprintf("Cleaning %s...", ctx.DistDir))
	if err := os.RemoveAll(ctx.DistDir); err != nil {
		printError(fmt.Sprintf("Failed to clean %s: %v", ctx.DistDir, err))
		os.Exit(1)
	}
	if err := os.RemoveAll("logs"); err != nil && ctx.Verbose {
		printWarning(fmt.Sprintf("Could not clear logs: %v", err))
	}
}

// buildRelease cross-compiles every executable into dist/<os>-<arch>.
func buildRelease(ctx *BuildContext) {
	printInfo("Building release...")
	runTests(ctx.Verbose)

	for _, platform := range []struct{ goos, goarch string }{
		{"linux", "amd64"},
		{"linux", "arm64"},
		{"darwin", "arm64"},
		{"windows", "amd64"},
	} {
		pctx := *ctx
		pctx.GOOS, pctx.GOARCH = platform.goos, platform.goarch
		pctx.DistDir = filepath.Join(ctx.DistDir, platform.goos+"-"+platform.goarch)
		buildAll(&pctx)
	}
}

func copyConfigFiles(ctx *BuildContext) {
	for _, name := range []string{"config.yaml", "layouts.yaml"} {
		src := filepath.Join("configs", name)
		data, err := os.ReadFile(src)
		if err != nil {
			if ctx.Verbose {
				printWarning(fmt.Sprintf("Skipping %s: %v", src, err))
			}
			continue
		}
		if err := os.WriteFile(filepath.Join(ctx.DistDir, name), data, 0644); err != nil {
			printWarning(fmt.Sprintf("Failed to copy %s: %v", src, err))
		}
	}
}

func showHelp() {
	fmt.Println("Usage: go run build.go [-target=TARGET] [-v] [-dist=DIR]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all             Build every executable (default)")
	fmt.Println("  web             Build the dashboard server")
	fmt.Println("  funding-report  Build the report CLI")
	fmt.Println("  test            Run all tests with the race detector")
	fmt.Println("  clean           Remove build output and logs")
	fmt.Println("  release         Cross-compile for all release platforms")
}
