// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 为 corejudge-worker 的 /metrics、/healthz 等管理端点
提供一个最小的 HTTP 服务器生命周期封装。

# 概述

Manager 封装 net/http.Server：非阻塞启动、幂等的优雅关闭，仅此
而已。进程级的信号监听与根 context 取消由 cmd/corejudge-worker
自己处理，不在本包重复。

# 核心类型

  - Manager：持有 http.Server 与 net.Listener，提供
    Start/Shutdown/Addr/IsRunning。
  - Config：监听地址、读写/空闲超时、最大请求头大小、优雅关闭
    超时。
*/
package server
