// Command analyze 用已入库的简历分析一段职位描述，并输出 JSON 结果。
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"careerforge-go/internal/bootstrap"
	"careerforge-go/internal/config"
	"careerforge-go/pkg/log"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	roadmap := flag.Bool("roadmap", false, "同时根据分析结果生成路线图")
	flag.Parse()

	jd := strings.Join(flag.Args(), " ")
	if jd == "-" || jd == "" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "读取标准输入失败: %v\n", err)
			os.Exit(1)
		}
		jd = string(b)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	defer app.Close()

	out := map[string]any{}
	result, err := app.Analysis.Analyze(ctx, jd)
	if err != nil {
		log.Errorf("分析失败: %v", err)
		_ = app.Close()
		os.Exit(1)
	}
	out["analysis"] = result

	if *roadmap {
		plan, err := app.Roadmap.GenerateRoadmap(ctx, result.StrategicProjectIdea, result.TechnicalGaps)
		if err != nil {
			log.Errorf("生成路线图失败: %v", err)
			_ = app.Close()
			os.Exit(1)
		}
		out["roadmap"] = plan
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("输出结果失败: %v", err)
	}
}
