package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"oscmix2mqtt/internal/logger"
	"oscmix2mqtt/internal/mixer"
	"oscmix2mqtt/internal/protocol"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Bridge is the MQTT boundary of the daemon. Mixer state flows out as
// retained-free JSON messages under <prefix>/state and <prefix>/meter;
// commands flow in on <prefix>/set/<wire-path> and <prefix>/refresh.
type Bridge struct {
	ctx    context.Context
	log    logger.Logger
	cfg    Conf
	ctrl   *mixer.Controller
	client mqtt.Client
	opts   *mqtt.ClientOptions
}

// New builds the bridge around an existing controller.
func New(log logger.Logger, cfg Conf, ctrl *mixer.Controller) *Bridge {
	if cfg.Prefix == "" {
		cfg.Prefix = "oscmix"
	}
	return &Bridge{
		log:  log,
		cfg:  cfg,
		ctrl: ctrl,
	}
}

func (b *Bridge) Start(ctx context.Context) error {
	if b.log.GetLevel() == "debug" {
		mqtt.ERROR = log.New(os.Stdout, "[ERROR] ", 0)
		mqtt.CRITICAL = log.New(os.Stdout, "[CRIT] ", 0)
		mqtt.WARN = log.New(os.Stdout, "[WARN]  ", 0)
	}

	b.ctx = ctx

	b.opts = mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%s", b.cfg.Schema, b.cfg.Host, b.cfg.Port)).
		SetUsername(b.cfg.User).
		SetPassword(b.cfg.Password).
		SetOnConnectHandler(b.connectHandler).
		SetConnectionLostHandler(b.connectLostHandler).
		SetClientID(b.cfg.ClientID).
		SetOrderMatters(false).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	b.client = mqtt.NewClient(b.opts)

	token := b.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return token.Error()
		}
	case <-b.ctx.Done():
		return errors.New("context canceled")
	}

	b.log.With(logger.Fields{"module": "mqtt"}).Infof("Status: %v", b.client.IsConnected())
	return nil
}

func (b *Bridge) Stop() error {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(500)
	}
	return nil
}

// connectHandler re-subscribes the command topics on every (re)connect.
func (b *Bridge) connectHandler(_ mqtt.Client) {
	b.log.With(logger.Fields{"module": "mqtt"}).Info("client connected to server")
	b.sub(b.cfg.Prefix+"/set/#", b.handleSet)
	b.sub(b.cfg.Prefix+"/refresh", b.handleRefresh)
}

func (b *Bridge) connectLostHandler(_ mqtt.Client, err error) {
	b.log.With(logger.Fields{"module": "mqtt"}).Errorf("server connect lost: %v\n", err)
}

func (b *Bridge) sub(topic string, handler mqtt.MessageHandler) {
	token := b.client.Subscribe(topic, b.cfg.Qos, handler)
	go func() {
		select {
		case <-b.ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				b.log.With(logger.Fields{"module": "mqtt"}).Errorf("topic %s subscription error. %v\n", topic, token.Error())
				return
			}
		}
		b.log.With(logger.Fields{"module": "mqtt"}).Debugf("topic %s subscribed\n", topic)
	}()
}

// handleSet turns <prefix>/set/input/3/gain {"value":12.5} into a
// SetParameter call. Rejected writes (link followers, read-only meters) are
// logged and dropped, matching the expected-frequent nature of those.
func (b *Bridge) handleSet(_ mqtt.Client, msg mqtt.Message) {
	go func() {
		path := strings.TrimPrefix(msg.Topic(), b.cfg.Prefix+"/set")
		d, ok := b.ctrl.Table().Resolve(path)
		if !ok {
			b.log.With(logger.Fields{"module": "mqtt"}).Errorf("set on unknown path %s dropped", path)
			return
		}

		v, err := parseValue(msg.Payload(), d.Param.Shape())
		if err != nil {
			b.log.With(logger.Fields{"module": "mqtt"}).Errorf("set %s: payload could not be parsed (%s): %v", path, msg.Payload(), err)
			return
		}

		if err := b.ctrl.SetParameter(d, v); err != nil {
			var rejected *mixer.RejectedWriteError
			if errors.As(err, &rejected) {
				b.log.With(logger.Fields{"module": "mqtt"}).Debugf("set %s ignored: %v", path, err)
				return
			}
			b.log.With(logger.Fields{"module": "mqtt"}).Errorf("set %s failed: %v", path, err)
		}
	}()
}

func (b *Bridge) handleRefresh(_ mqtt.Client, _ mqtt.Message) {
	go func() {
		if err := b.ctrl.RequestRefresh(); err != nil {
			b.log.With(logger.Fields{"module": "mqtt"}).Errorf("refresh failed: %v", err)
		}
	}()
}

// PublishState mirrors one state change to <prefix>/state/<wire-path>.
func (b *Bridge) PublishState(d protocol.Descriptor, v protocol.Value) {
	addr, err := b.ctrl.Table().Address(d)
	if err != nil {
		return
	}
	b.publishJSON(b.cfg.Prefix+"/state"+addr, statePayload{Value: scalar(v)})
}

// PublishMeters mirrors one aggregator batch to <prefix>/meter/<type>/<n>.
func (b *Bridge) PublishMeters(samples []mixer.MeterSample) {
	for _, s := range samples {
		topic := b.cfg.Prefix + "/meter/" + s.Type.String() + "/" + strconv.Itoa(s.Index+1)
		b.publishJSON(topic, meterPayload{Level: s.Level})
	}
}

// PublishStatus announces session state under <prefix>/status.
func (b *Bridge) PublishStatus(status string) {
	if b.client == nil {
		return
	}
	b.client.Publish(b.cfg.Prefix+"/status", b.cfg.Qos, true, status)
}

func (b *Bridge) publishJSON(topic string, payload interface{}) {
	if b.client == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.With(logger.Fields{"module": "mqtt"}).Errorf("publish %s: %v", topic, err)
		return
	}
	b.client.Publish(topic, b.cfg.Qos, false, data)
}

func parseValue(payload []byte, shape protocol.Shape) (protocol.Value, error) {
	var p setPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return protocol.Value{}, err
	}

	switch shape {
	case protocol.ShapeFloat:
		f, ok := p.Value.(float64)
		if !ok {
			return protocol.Value{}, fmt.Errorf("value must be a number")
		}
		return protocol.Float(float32(f)), nil
	case protocol.ShapeInt:
		f, ok := p.Value.(float64)
		if !ok {
			return protocol.Value{}, fmt.Errorf("value must be a number")
		}
		return protocol.Int(int32(f)), nil
	default:
		switch v := p.Value.(type) {
		case bool:
			return protocol.Bool(v), nil
		case float64:
			return protocol.Bool(v != 0), nil
		}
		return protocol.Value{}, fmt.Errorf("value must be a bool or 0/1")
	}
}

func scalar(v protocol.Value) interface{} {
	switch v.Shape() {
	case protocol.ShapeFloat:
		return v.Float()
	case protocol.ShapeInt:
		return v.Int()
	default:
		return v.Bool()
	}
}
