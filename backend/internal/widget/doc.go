// Package widget 文章统计组件，让挂载中的展示和服务端、和彼此保持一致
//
// Interactive 每次挂载记一次浏览，并负责点赞/取消点赞。
// ReadOnly 只读，RefreshStrategy 触发时重新拉取：PushRefresh 跟着进程内 bus，PullRefresh 定时轮询。
// Unmount 之后才回来的结果直接丢弃。
package widget
