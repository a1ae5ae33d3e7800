package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shorts-studio/app/model"
)

func TestTaskInfoUnmarshal(t *testing.T) {
	tests := map[string]struct {
		data       string
		expStatus  string
		expPercent *int
	}{
		"进度对象": {
			data:       `{"percent": 42.0, "status": "rendering"}`,
			expStatus:  "rendering",
			expPercent: intPtr(42),
		},
		"结果对象没有进度字段": {
			data: `{"output": "final.mp4"}`,
		},
		"失败时的字符串负载被忽略": {
			data: `"Traceback ..."`,
		},
		"null": {
			data: `null`,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var info model.TaskInfo
			require.NoError(t, json.Unmarshal([]byte(test.data), &info))
			assert.Equal(t, test.expStatus, info.Status)
			assert.Equal(t, test.expPercent, info.Percent)
		})
	}
}

func TestProjectStatusWithStringTaskInfo(t *testing.T) {
	var st model.ProjectStatus
	err := json.Unmarshal([]byte(`{"status":"failed","task_info":"boom","error_message":"x"}`), &st)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, st.Status)
	assert.Equal(t, "x", st.ErrorMessage)
}

func TestGenerationUpdateApply(t *testing.T) {
	base := model.ProgressSnapshot{Progress: 40, Status: model.TaskStatusProcessing, Message: "rendering"}

	got := model.GenerationUpdate{}.WithMessage("encoding").Apply(base)
	assert.Equal(t, model.ProgressSnapshot{Progress: 40, Status: model.TaskStatusProcessing, Message: "encoding"}, got)

	got = model.Progress(0).Apply(base)
	assert.Equal(t, 0, got.Progress, "显式的 0 也要写入")

	got = model.Progress(150).WithStatus(model.TaskStatusCompleted).Apply(base)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, model.TaskStateSuccess.IsTerminal())
	assert.True(t, model.TaskStateFailure.IsTerminal())
	assert.True(t, model.TaskStateRevoked.IsTerminal())
	assert.False(t, model.TaskStateProgress.IsTerminal())
	assert.True(t, model.TaskStatusCompleted.IsTerminal())
	assert.False(t, model.TaskStatusQueued.IsTerminal())
}

func intPtr(i int) *int { return &i }
