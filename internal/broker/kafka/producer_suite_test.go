package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/BearBump/DispatchBox/internal/broker/messages"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type writerMock struct {
	mock.Mock
}

func (m *writerMock) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

type ProducerSuite struct {
	suite.Suite
	wm *writerMock
	p  *Producer
}

func (s *ProducerSuite) SetupTest() {
	s.wm = &writerMock{}
	s.p = newProducerWithWriter(s.wm)
}

func (s *ProducerSuite) TestNewProducer_NotNil() {
	p := NewProducer([]string{"localhost:0"})
	s.Require().NotNil(p)
}

func (s *ProducerSuite) TestStateEvents_PayloadIsEvent() {
	orderID := "42"
	s.wm.
		On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			var ev messages.ControlStateChanged
			if json.Unmarshal(msgs[0].Value, &ev) != nil {
				return false
			}
			return ev.State == "sent" && ev.OrderID != nil && *ev.OrderID == "42"
		})).
		Return(nil).
		Once()

	err := NewStateEvents(s.p, "control.state").Publish(context.Background(), messages.ControlStateChanged{
		EventID:   "e1",
		ControlID: "docs",
		State:     "sent",
		OrderID:   &orderID,
	})
	s.Require().NoError(err)
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestPublish_OK() {
	s.wm.
		On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			return msgs[0].Topic == "t" && string(msgs[0].Key) == "k" && string(msgs[0].Value) == "v"
		})).
		Return(nil).
		Once()

	s.Require().NoError(s.p.Publish(context.Background(), "t", []byte("k"), []byte("v")))
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestPublish_ErrorWrapped() {
	want := errors.New("boom")
	s.wm.On("WriteMessages", mock.Anything, mock.Anything).Return(want).Once()

	err := s.p.Publish(context.Background(), "t", []byte("k"), []byte("v"))
	s.Require().Error(err)
	s.Require().Contains(err.Error(), "kafka publish")
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestStateEvents_KeyedByControl() {
	s.wm.
		On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			return len(msgs) == 1 && msgs[0].Topic == "control.state" && string(msgs[0].Key) == "combo-1"
		})).
		Return(errors.New("broker down")).
		Once()

	err := NewStateEvents(s.p, "control.state").Publish(context.Background(), messages.ControlStateChanged{ControlID: "combo-1", State: "error"})
	s.Require().Error(err)
	s.Require().Contains(err.Error(), "kafka publish")
	s.wm.AssertExpectations(s.T())
}

func TestProducerSuite(t *testing.T) {
	suite.Run(t, new(ProducerSuite))
}
