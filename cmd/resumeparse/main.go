// resumeparse 在本地解析一份 PDF 简历并输出结构化 JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"resume-structurer/internal/config"
	"resume-structurer/internal/logger"
	"resume-structurer/internal/parser"
)

func main() {
	var (
		filePath      string
		extractorType string
		pretty        bool
		timeout       time.Duration
		verbose       bool
	)
	pflag.StringVarP(&filePath, "file", "f", "", "PDF file to parse")
	pflag.StringVar(&extractorType, "extractor", parser.ExtractorEino, "Page extractor: eino, native or tika")
	pflag.BoolVar(&pretty, "pretty", false, "Indent JSON output")
	pflag.DurationVar(&timeout, "timeout", 30*time.Second, "Parse timeout")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")
	pflag.Parse()

	if filePath == "" && pflag.NArg() > 0 {
		filePath = pflag.Arg(0)
	}
	if filePath == "" {
		fmt.Fprintln(os.Stderr, "usage: resumeparse -f resume.pdf [--extractor eino|native|tika] [--pretty]")
		os.Exit(2)
	}

	level := "disabled"
	if verbose {
		level = "debug"
	}
	logger.Init(logger.Config{Level: level, Format: "pretty", Output: os.Stderr})

	if err := run(filePath, extractorType, pretty, timeout); err != nil {
		fmt.Fprintf(os.Stderr, "resumeparse: %v\n", err)
		os.Exit(1)
	}
}

// run 只有文件读取和输出失败时返回错误, 无法提取文本的 PDF 输出 scanned=true 的结果
func run(filePath, extractorType string, pretty bool, timeout time.Duration) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("读取文件失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := config.LoadConfig("")
	if err != nil {
		cfg = config.Default()
	}
	extractor, err := parser.NewPageExtractor(ctx, extractorType, cfg)
	if err != nil {
		return err
	}

	parsed := parser.NewStructurer(extractor).Parse(ctx, data)

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(parsed); err != nil {
		return fmt.Errorf("输出结果失败: %w", err)
	}
	return nil
}
