package service

import (
	"strings"
	"time"
	"unicode"

	"grading_sync_v1/internal/api/dto"
	"grading_sync_v1/internal/model"
)

// ==================== 固定流程 ====================

// 流程节点序号
const (
	StepArrived = iota
	StepOrderPrep
	StepResearchID
	StepGrading
	StepAssembly
	StepShipped
)

// PipelineSteps 固定的送评流程，序号即顺序
var PipelineSteps = []string{
	"Arrived",
	"Order Prep",
	"Research & ID",
	"Grading",
	"Assembly",
	"Shipped",
}

// stepAliases 外部节点名（归一化后）-> 流程序号
var stepAliases = map[string]int{
	"arrived":           StepArrived,
	"received":          StepArrived,
	"order received":    StepArrived,
	"intake":            StepArrived,
	"order prep":        StepOrderPrep,
	"order preparation": StepOrderPrep,
	"prep":              StepOrderPrep,
	"research id":       StepResearchID,
	"research and id":   StepResearchID,
	"research":          StepResearchID,
	"identification":    StepResearchID,
	"grading":           StepGrading,
	"in grading":        StepGrading,
	"assembly":          StepAssembly,
	"qa checks":         StepAssembly,
	"quality checks":    StepAssembly,
	"quality control":   StepAssembly,
	"encapsulation":     StepAssembly,
	"shipped":           StepShipped,
	"shipping":          StepShipped,
	"complete":          StepShipped,
	"completed":         StepShipped,
	"delivered":         StepShipped,
}

// normalizeStepName 小写，标点与多余空白折叠为单个空格
func normalizeStepName(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

// LookupStep 已知节点返回序号
func LookupStep(name string) (int, bool) {
	idx, ok := stepAliases[normalizeStepName(name)]
	return idx, ok
}

// ==================== 映射结果 ====================

// StepFlags 由外部状态推导的状态位
type StepFlags struct {
	GradesReady    bool
	Shipped        bool
	ProblemOrder   bool
	AccountingHold bool
}

// StepMapping 单个外部节点名的映射结果
type StepMapping struct {
	Index           int
	Step            string // 流程中的标准节点名
	ProgressPercent int
	Unknown         bool   // 外部节点名无法识别，按最近的已知前序节点处理
	RawLabel        string // 外部原始节点名
	Lifecycle       model.SubmissionLifecycle
	Flags           StepFlags
}

// StepState 单个流程节点的完成情况
type StepState struct {
	Index       int
	Name        string
	Completed   bool
	CompletedAt *time.Time
}

// ProgressMapping 完整进度报文的映射结果
type ProgressMapping struct {
	StepMapping
	Steps []StepState
}

// progressFor 节点序号对应的进度，向下取整，Shipped 固定 100
func progressFor(index int) int {
	if index >= StepShipped {
		return 100
	}
	return index * 100 / (len(PipelineSteps) - 1)
}

// MapExternalStatus 将外部节点名映射到固定流程
// externalSteps 为外部报文中的节点顺序，用于为未知节点寻找最近的已知前序节点
func MapExternalStatus(label string, externalSteps []string) StepMapping {
	idx, ok := LookupStep(label)
	unknown := !ok
	if unknown {
		idx = nearestKnownPredecessor(label, externalSteps)
	}

	m := StepMapping{
		Index:           idx,
		Step:            PipelineSteps[idx],
		ProgressPercent: progressFor(idx),
		Unknown:         unknown,
		RawLabel:        label,
		Lifecycle:       model.LifecycleInProgress,
	}

	// 评级节点完成（即已进入之后的节点）才算出分
	if idx > StepGrading {
		m.Flags.GradesReady = true
		m.Lifecycle = model.LifecycleGradesReady
	}
	if idx == StepShipped {
		m.Flags.Shipped = true
		m.Flags.GradesReady = true
		m.Lifecycle = model.LifecycleShipped
	}
	return m
}

func nearestKnownPredecessor(label string, externalSteps []string) int {
	target := normalizeStepName(label)
	pos := -1
	for i, name := range externalSteps {
		if normalizeStepName(name) == target {
			pos = i
			break
		}
	}

	for i := pos - 1; i >= 0; i-- {
		if idx, ok := LookupStep(externalSteps[i]); ok {
			return idx
		}
	}
	return StepArrived
}

// MapProgress 映射完整进度报文：当前节点之前的节点全部完成，Shipped 时全部完成
func MapProgress(resp *dto.GradingProgressResponse) ProgressMapping {
	label := resp.CurrentStep
	if label == "" {
		label = currentFromSteps(resp.Steps)
	}

	mapping := ProgressMapping{StepMapping: MapExternalStatus(label, resp.StepNames())}
	mapping.Flags.ProblemOrder = resp.ProblemOrder
	mapping.Flags.AccountingHold = resp.AccountingHold

	completedAt := externalCompletionTimes(resp.Steps)
	mapping.Steps = make([]StepState, len(PipelineSteps))
	for i, name := range PipelineSteps {
		state := StepState{Index: i, Name: name}
		if i < mapping.Index || mapping.Index == StepShipped {
			state.Completed = true
			state.CompletedAt = completedAt[i]
		}
		mapping.Steps[i] = state
	}
	if mapping.Index == StepShipped && resp.ShippedDate != nil && mapping.Steps[StepShipped].CompletedAt == nil {
		mapping.Steps[StepShipped].CompletedAt = resp.ShippedDate
	}
	return mapping
}

// currentFromSteps 外部未给出当前节点时，取第一个未完成的节点；全部完成取最后一个
func currentFromSteps(steps []dto.GradingProgressStep) string {
	for _, s := range steps {
		if !s.Completed {
			return s.Name
		}
	}
	if len(steps) > 0 {
		return steps[len(steps)-1].Name
	}
	return PipelineSteps[StepArrived]
}

// externalCompletionTimes 外部报文中各已知节点的完成时间
func externalCompletionTimes(steps []dto.GradingProgressStep) map[int]*time.Time {
	times := make(map[int]*time.Time, len(steps))
	for _, s := range steps {
		idx, ok := LookupStep(s.Name)
		if !ok || s.CompletedAt == nil {
			continue
		}
		if _, exists := times[idx]; !exists {
			times[idx] = s.CompletedAt
		}
	}
	return times
}
