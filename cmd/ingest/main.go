// Command ingest 从命令行把一份简历写入向量存储，替换已有内容。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"careerforge-go/internal/bootstrap"
	"careerforge-go/internal/config"
	"careerforge-go/pkg/log"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	overlap := flag.Int("overlap", -1, "覆盖配置中的 chunk_overlap，负数表示使用配置值")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "用法: %s [flags] <resume.pdf|docx|txt|md>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *overlap >= 0 {
		cfg.Chunker.ChunkOverlap = *overlap
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "参数无效: %v\n", err)
			os.Exit(2)
		}
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	path := flag.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("读取文件失败: %v", err)
	}

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	defer app.Close()

	result, err := app.Resume.Upload(ctx, filepath.Base(path), data)
	if err != nil {
		log.Errorf("入库失败: %v", err)
		_ = app.Close()
		os.Exit(1)
	}
	fmt.Println(result.Message)
}
