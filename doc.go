// Package bookrec 是一个图书推荐引擎（Book Recommender）。
//
// 设计要点：
// - Item-CF 核心: 基于物品的协同过滤，adjusted cosine 相似度，一次计算全程复用
// - 双命名空间对齐: 目录 ID 与评分源 ID 自动解析，调用方用任意一种形式都能命中
// - Pipeline 后处理: 召回结果经 Node 串联（Recall → Filter → ReRank → PostProcess）
// - Labels 透传: 推荐来源、过滤原因等经 labels 全链路携带，支持 explain / 观测
package bookrec

import "github.com/rushteam/bookrec/pipeline"

// 轻量 facade：便于用户直接 import "bookrec" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)
