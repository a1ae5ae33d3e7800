// Package realtime 维护与后端的单条 WebSocket 连接，并把任务推送路由给订阅者。
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"shorts-studio/app/config"
	"shorts-studio/app/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MB
	sendBufferSize = 64
)

// State 连接状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// TaskCallback 任务推送回调，在读协程中按到达顺序调用
type TaskCallback func(TaskUpdate)

type subscription struct {
	cb TaskCallback
}

// Channel 实时事件通道。每个实例拥有独立的客户端标识，
// 同一时刻最多一条活动连接。
type Channel struct {
	baseURL           string
	clientID          string
	reconnectAttempts int
	reconnectDelay    time.Duration
	dialer            *websocket.Dialer
	log               *logger.Logger

	mu        sync.Mutex
	state     State
	changed   chan struct{} // 每次状态变化时关闭并替换
	conn      *websocket.Conn
	send      chan []byte
	connStop  context.CancelFunc
	dialStop  context.CancelFunc
	listeners map[string]*subscription
}

// New 创建实时通道，不会立即连接
func New(cfg config.WSConfig, log *logger.Logger) *Channel {
	return &Channel{
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		clientID:          NewClientID(),
		reconnectAttempts: cfg.ReconnectAttempts,
		reconnectDelay:    cfg.ReconnectDelay,
		dialer:            websocket.DefaultDialer,
		log:               log.Named("realtime"),
		changed:           make(chan struct{}),
		listeners:         make(map[string]*subscription),
	}
}

// NewClientID 生成进程内有效的客户端标识
func NewClientID() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("client-%d-%s", time.Now().UnixMilli(), random)
}

// ClientID 返回本通道的客户端标识
func (c *Channel) ClientID() string {
	return c.clientID
}

// URL 连接地址 <base>/ws/<clientId>
func (c *Channel) URL() string {
	return c.baseURL + "/ws/" + url.PathEscape(c.clientID)
}

// State 当前连接状态
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect 异步建立连接。已连接或正在连接时什么也不做。
func (c *Channel) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDisconnected {
		return
	}
	c.startDialLocked(false)
}

// WaitConnected 阻塞到连接建立或 ctx 结束
func (c *Channel) WaitConnected(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.state == StateConnected {
			c.mu.Unlock()
			return nil
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Disconnect 断开连接并停止重连，可重复调用
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dialStop != nil {
		c.dialStop()
		c.dialStop = nil
	}
	if c.connStop != nil {
		c.connStop()
		c.connStop = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.send = nil
	if c.state != StateDisconnected {
		c.log.Infof("实时通道已断开: %s", c.clientID)
	}
	c.setStateLocked(StateDisconnected)
}

// SubscribeTask 登记回调并发送订阅消息。同一任务重复订阅时后者覆盖前者。
// 未连接时消息会被丢弃，但登记保留，连接建立后统一补发。
func (c *Channel) SubscribeTask(taskID string, cb TaskCallback) {
	c.mu.Lock()
	c.listeners[taskID] = &subscription{cb: cb}
	c.mu.Unlock()

	c.sendJSON(taskMessage{Type: MsgTypeSubscribeTask, TaskID: taskID})
}

// UnsubscribeTask 发送取消订阅，无论发送是否成功都移除本地登记
func (c *Channel) UnsubscribeTask(taskID string) {
	c.sendJSON(taskMessage{Type: MsgTypeUnsubscribeTask, TaskID: taskID})

	c.mu.Lock()
	delete(c.listeners, taskID)
	c.mu.Unlock()
}

// Subscribed 任务是否仍有登记
func (c *Channel) Subscribed(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.listeners[taskID]
	return ok
}

// Ping 发送应用层心跳
func (c *Channel) Ping() {
	c.sendJSON(pingMessage{Type: MsgTypePing, Timestamp: time.Now().UnixMilli()})
}

func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Channel) startDialLocked(reconnect bool) {
	ctx, cancel := context.WithCancel(context.Background())
	c.dialStop = cancel
	c.setStateLocked(StateConnecting)
	go c.dialLoop(ctx, reconnect)
}

// dialLoop 首次连接失败或掉线后，按固定间隔最多重试 reconnectAttempts 次
func (c *Channel) dialLoop(ctx context.Context, reconnect bool) {
	maxAttempts := c.reconnectAttempts
	if !reconnect {
		// 首次连接本身不计入重试次数
		maxAttempts++
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if reconnect || attempt > 1 {
			c.log.Infof("实时通道将在 %v 后重连 (第 %d 次)", c.reconnectDelay, attempt)
			select {
			case <-time.After(c.reconnectDelay):
			case <-ctx.Done():
				return
			}
		}

		conn, _, err := c.dialer.DialContext(ctx, c.URL(), nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warnf("实时通道连接失败: %v", err)
			continue
		}

		c.attach(ctx, conn)
		return
	}

	c.mu.Lock()
	if ctx.Err() == nil {
		c.log.Errorf("实时通道重连次数已用完，放弃连接")
		c.dialStop = nil
		c.setStateLocked(StateDisconnected)
	}
	c.mu.Unlock()
}

func (c *Channel) attach(dialCtx context.Context, conn *websocket.Conn) {
	connCtx, connStop := context.WithCancel(context.Background())
	send := make(chan []byte, sendBufferSize)

	c.mu.Lock()
	// Disconnect 已经在拨号期间被调用
	if dialCtx.Err() != nil {
		c.mu.Unlock()
		connStop()
		conn.Close()
		return
	}
	c.dialStop = nil
	c.conn = conn
	c.send = send
	c.connStop = connStop
	c.setStateLocked(StateConnected)

	pending := make([]string, 0, len(c.listeners))
	for taskID := range c.listeners {
		pending = append(pending, taskID)
	}
	c.mu.Unlock()

	c.log.Infof("实时通道已连接: %s", c.clientID)

	var once sync.Once
	onDisconnect := func() {
		once.Do(func() {
			connStop()
			conn.Close()

			c.mu.Lock()
			defer c.mu.Unlock()
			if c.conn != conn {
				return
			}
			c.conn = nil
			c.send = nil
			c.connStop = nil
			c.log.Warnf("实时通道连接断开")
			c.setStateLocked(StateDisconnected)
			c.startDialLocked(true)
		})
	}

	go c.readPump(conn, onDisconnect)
	go c.writePump(connCtx, conn, send, onDisconnect)

	// 重新订阅仍在登记中的任务
	for _, taskID := range pending {
		c.sendJSON(taskMessage{Type: MsgTypeSubscribeTask, TaskID: taskID})
	}
}

func (c *Channel) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Errorf("实时消息序列化失败: %v", err)
		return
	}

	c.mu.Lock()
	send := c.send
	c.mu.Unlock()

	if send == nil {
		c.log.Warnf("实时通道未连接，丢弃消息: %s", data)
		return
	}

	select {
	case send <- data:
	default:
		c.log.Warnf("实时通道发送缓冲已满，丢弃消息: %s", data)
	}
}

func (c *Channel) readPump(conn *websocket.Conn, onDisconnect func()) {
	defer onDisconnect()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warnf("实时通道读取失败: %v", err)
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *Channel) writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte, onDisconnect func()) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		onDisconnect()
	}()

	for {
		select {
		case message := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Warnf("实时通道写入失败: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *Channel) handleMessage(data []byte) {
	msg, err := DecodeInbound(data)
	if err != nil {
		c.log.Warnf("忽略实时消息: %v", err)
		return
	}

	switch m := msg.(type) {
	case TaskUpdate:
		c.dispatch(m)
	case Pong:
		c.log.Debugf("收到 pong, 往返 %dms", time.Now().UnixMilli()-m.Timestamp)
	case Echo:
		c.log.Debugf("收到 echo: %s", m.Message)
	}
}

// dispatch 调用任务回调；终态推送之后移除该次登记
func (c *Channel) dispatch(update TaskUpdate) {
	c.mu.Lock()
	sub := c.listeners[update.TaskID]
	c.mu.Unlock()

	if sub != nil {
		sub.cb(update)
	}

	if !update.State.IsTerminal() {
		return
	}

	c.mu.Lock()
	// 回调里可能重新订阅了同一任务，只移除本次登记
	if current, ok := c.listeners[update.TaskID]; ok && current == sub {
		delete(c.listeners, update.TaskID)
	}
	c.mu.Unlock()
}
