/*
Package config 提供 corejudge worker 进程的配置加载功能。

# 概述

config 包把一份 Config 从三个来源合并出来：内置默认值、可选的
YAML 文件、COREJUDGE_ 前缀的环境变量，合并引擎为 koanf，后一个
来源覆盖前一个。没有运行时热重载或管理 API：worker 进程的配置
在启动时加载一次，要变更就重启进程。

# 核心结构

  - Config: 顶层配置聚合，涵盖 Server、Worker、Broker、
    RateLimit、Tasks、LLM、Log、Telemetry、OrphanRecovery
  - Loader: 配置加载器，支持 Builder 模式链式设置
    文件路径、环境变量前缀与自定义验证器

# 主要能力

  - 多源加载: YAML 文件、环境变量（COREJUDGE_ 前缀）、默认值
  - 配置验证: Validate 校验端口范围、worker 池大小、队列非空、
    限流 TTL 等不变量，外加 WithValidator 挂载的自定义钩子

# 使用示例

	cfg, err := config.NewLoader().
		WithConfigPath("config.yaml").
		WithEnvPrefix("COREJUDGE").
		Load()
*/
package config
