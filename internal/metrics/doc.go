// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的 worker 进程指标采集能力，覆盖
任务执行、队列深度、限流决策、账本缓存与 LLM 调用五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按组件维度分组管理。

# 主要能力

  - 任务指标：执行总数、执行耗时，按 task/status 分组。
  - 队列指标：队列深度 Gauge，按 queue 分组。
  - 限流指标：限流决策计数，按 action/decision 分组。
  - 账本缓存指标：命中与未命中计数，按 tier 分组。
  - LLM 指标：请求总数、请求耗时，按 provider/model/status 分组。
*/
package metrics
