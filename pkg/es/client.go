// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"crypto/tls"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"careerforge-go/internal/config"
)

// NewClient 根据配置创建 Elasticsearch 客户端，多个地址用逗号分隔。
func NewClient(esCfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	var addrs []string
	for _, a := range strings.Split(esCfg.Addresses, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	cfg := elasticsearch.Config{
		Addresses: addrs,
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	return elasticsearch.NewClient(cfg)
}
