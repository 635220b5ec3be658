// Package kafka 消息归档流：发出去的消息异步落一份到 kafka，
// 供离线分析、审计等下游消费。网关主链路不依赖它。
package kafka

import (
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"

	"MTalk/module/chat/model"
)

type Config struct {
	Brokers []string
	Topic   string
}

func (c *Config) norm() {
	if c.Topic == "" {
		c.Topic = "mtalk-messages"
	}
}

type ArchiveProducer struct {
	conf Config
	prod sarama.SyncProducer
}

func NewArchiveProducer(cfg Config) (*ArchiveProducer, error) {
	cfg.norm()
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	// Key 控制分区：同房间的消息进同一分区，保序
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.Net.DialTimeout = 10 * time.Second
	sc.Net.WriteTimeout = 30 * time.Second

	prod, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, errors.Wrap(err, "kafka producer")
	}
	return &ArchiveProducer{conf: cfg, prod: prod}, nil
}

func (p *ArchiveProducer) ArchiveMessage(msg *model.Message) error {
	if p == nil || p.prod == nil {
		return errors.New("archive producer not initialized")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}
	_, _, err = p.prod.SendMessage(&sarama.ProducerMessage{
		Topic: p.conf.Topic,
		Key:   sarama.StringEncoder(msg.RoomID),
		Value: sarama.ByteEncoder(data),
	})
	return err
}

func (p *ArchiveProducer) Close() error {
	if p == nil || p.prod == nil {
		return nil
	}
	return p.prod.Close()
}
