package ioc

import (
	"math"
	"sort"
)

// Ordered 表示实例可声明自身的排序值。
// 值越小优先级越高；未声明排序值的候选排在最后。
type Ordered interface {
	Order() int
}

// OrderLowest 未声明排序值时使用的默认优先级（最低）。
const OrderLowest = math.MaxInt32

// orderedCandidate 携带候选及其排序信息。
type orderedCandidate struct {
	name     string
	instance any
	order    int
	index    int // 注册顺序，排序值相同时的回退
}

// orderOf 计算候选的排序值：先看定义上声明的排序，再看实例自身的 Ordered 契约。
func orderOf(def *BeanDefinition, instance any) int {
	if def != nil && def.order != nil {
		return *def.order
	}
	if o, ok := instance.(Ordered); ok {
		return o.Order()
	}
	return OrderLowest
}

// sortCandidates 按排序值升序排列，相同排序值保持注册顺序。
func sortCandidates(candidates []orderedCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].order != candidates[j].order {
			return candidates[i].order < candidates[j].order
		}
		return candidates[i].index < candidates[j].index
	})
}
