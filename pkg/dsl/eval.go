package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/bookrec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("rec", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("rctx", cel.DynType),
	)
	return env, err
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	var err error
	celEnvOnce.Do(func() {
		celEnv, err = initCELEnv()
	})
	return celEnv, err
}

// Eval 是推荐结果的表达式解释器，使用 CEL (Common Expression Language) 实现。
//
// 表达式语法（CEL 标准语法）：
//   - 数值：rec.score > 0.2 / rec.score >= 0.05
//   - 字符串：rec.method == "item_cf" / rec.title != "Unknown"
//   - 标签：label.recall_source == "item_cf"
//   - 逻辑：rec.score > 0.1 && rec.method == "item_cf"
//   - 包含："Herbert" in rec.author_names
//
// 示例：
//   - `rec.score >= 0.2` → 只留高相似度候选
//   - `rec.title != "Unknown"` → 丢掉没有元数据的候选
type Eval struct {
	rec  *core.Recommendation
	rctx *core.RecommendContext
	env  *cel.Env
}

// NewEval 创建一个新的表达式解释器。
func NewEval(rec *core.Recommendation, rctx *core.RecommendContext) *Eval {
	env, _ := getCELEnv()
	return &Eval{
		rec:  rec,
		rctx: rctx,
		env:  env,
	}
}

// Evaluate 解析并执行表达式，返回布尔结果。
// 空表达式恒为 true。表达式结果不是布尔值时报错。
func (e *Eval) Evaluate(expr string) (bool, error) {
	if expr == "" {
		return true, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("compile error: %v", issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("program error: %v", err)
	}

	out, _, err := prg.Eval(e.buildInput())
	if err != nil {
		// CEL 访问不存在的 key 会报错；用 label.key != null 判断存在性
		return false, fmt.Errorf("eval error: %v", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据
func (e *Eval) buildInput() map[string]interface{} {
	labels := make(map[string]interface{})
	labelAccessor := make(map[string]interface{})
	for k, v := range e.rec.Labels {
		labels[k] = map[string]interface{}{
			"value":  v.Value,
			"source": v.Source,
		}
		// label.recall_source 直接取 value
		labelAccessor[k] = v.Value
	}

	authors := make([]interface{}, 0, len(e.rec.AuthorNames))
	for _, a := range e.rec.AuthorNames {
		authors = append(authors, a)
	}

	rec := map[string]interface{}{
		"id":           e.rec.ID,
		"title":        e.rec.Title,
		"author_names": authors,
		"score":        e.rec.Score,
		"method":       e.rec.Method,
		"source_book":  e.rec.SourceBook,
		"labels":       labels,
	}

	rctx := map[string]interface{}{}
	if e.rctx != nil {
		rctx["user_key"] = e.rctx.UserKey
		rctx["scene"] = e.rctx.Scene
		rctx["params"] = e.rctx.Params
	}

	return map[string]interface{}{
		"rec":   rec,
		"label": labelAccessor,
		"rctx":  rctx,
	}
}
