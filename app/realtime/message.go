package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"shorts-studio/app/model"
)

// MsgType 实时通道消息类型
type MsgType string

const (
	// 客户端 → 服务端
	MsgTypeSubscribeTask   MsgType = "subscribe_task"
	MsgTypeUnsubscribeTask MsgType = "unsubscribe_task"
	MsgTypePing            MsgType = "ping"

	// 服务端 → 客户端
	MsgTypeTaskUpdate MsgType = "task_update"
	MsgTypePong       MsgType = "pong"
	MsgTypeEcho       MsgType = "echo"
)

var (
	ErrUnknownMessage = errors.New("未知的消息类型")
	ErrInvalidMessage = errors.New("消息格式错误")
)

// taskMessage 订阅/取消订阅
type taskMessage struct {
	Type   MsgType `json:"type"`
	TaskID string  `json:"task_id"`
}

type pingMessage struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
}

// Inbound 服务端下发消息的封闭联合类型，只有本包内的类型实现它
type Inbound interface {
	inbound()
}

// TaskUpdate 任务状态推送
type TaskUpdate struct {
	TaskID string
	State  model.TaskState
	Info   model.TaskInfo
}

// Pong ping 的回应
type Pong struct {
	Timestamp int64
}

// Echo 服务端回显未知请求
type Echo struct {
	Message string
}

func (TaskUpdate) inbound() {}
func (Pong) inbound()       {}
func (Echo) inbound()       {}

// rawInbound 服务端消息是扁平结构，按 type 收窄
type rawInbound struct {
	Type      MsgType         `json:"type"`
	TaskID    string          `json:"task_id"`
	State     model.TaskState `json:"state"`
	Info      json.RawMessage `json:"info"`
	Timestamp int64           `json:"timestamp"`
	Message   string          `json:"message"`
}

// DecodeInbound 解析并校验服务端消息
func DecodeInbound(data []byte) (Inbound, error) {
	var raw rawInbound
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	switch raw.Type {
	case MsgTypeTaskUpdate:
		if raw.TaskID == "" {
			return nil, fmt.Errorf("%w: task_update 缺少 task_id", ErrInvalidMessage)
		}
		if raw.State == "" {
			return nil, fmt.Errorf("%w: task_update 缺少 state", ErrInvalidMessage)
		}
		update := TaskUpdate{TaskID: raw.TaskID, State: raw.State}
		if len(raw.Info) > 0 {
			if err := json.Unmarshal(raw.Info, &update.Info); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
			}
		}
		return update, nil

	case MsgTypePong:
		return Pong{Timestamp: raw.Timestamp}, nil

	case MsgTypeEcho:
		return Echo{Message: raw.Message}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, raw.Type)
	}
}
