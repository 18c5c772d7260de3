package webviz

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	lru "github.com/hashicorp/golang-lru"
)

const sqsDedupCacheSize = 1024
const sqsReceiveWaitSeconds = 3
const sqsReceiveBatchSize = 10

func getAWSSession() (conf client.ConfigProvider, err error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	conf, err = session.NewSession(aws.NewConfig().WithRegion(region))
	if err != nil {
		return
	}
	return
}

func getSQSService() (sqsService *sqs.SQS, err error) {
	session, err := getAWSSession()
	if err != nil {
		return
	}
	sqsService = sqs.New(session)
	return
}

//	SQS message bodies are JSON; attachments travel base64-encoded next to
//	the envelope, never inside its payload value.
type sqsBody struct {
	Envelope    Envelope `json:"envelope"`
	Attachments []string `json:"attachments,omitempty"`
}

func encodeSQSBody(env Envelope, attachments [][]byte) (body string, err error) {
	encoded := sqsBody{Envelope: env}
	for _, attachment := range attachments {
		encoded.Attachments = append(encoded.Attachments, base64.StdEncoding.EncodeToString(attachment))
	}
	bodyBytes, err := json.Marshal(encoded)
	if err != nil {
		return
	}
	body = string(bodyBytes)
	return
}

func decodeSQSBody(body string) (env Envelope, attachments [][]byte, err error) {
	var decoded sqsBody
	err = json.Unmarshal([]byte(body), &decoded)
	if err != nil {
		return
	}
	env = decoded.Envelope
	for _, attachmentString := range decoded.Attachments {
		var attachment []byte
		attachment, err = base64.StdEncoding.DecodeString(attachmentString)
		if err != nil {
			return
		}
		attachments = append(attachments, attachment)
	}
	return
}

//	SQSChannel is a Channel over a pair of Amazon SQS queues: envelopes are
//	posted to sendQueue and received from recvQueue, so two processes link up
//	by naming the same pair in opposite order. SQS delivers at least once;
//	message IDs are deduplicated so the bound hook still sees each envelope
//	at most once.
type SQSChannel struct {
	sync.Mutex
	service      *sqs.SQS
	sendQueueURL string
	recvQueueURL string
	hook         Hook
	seenIDs      *lru.Cache
	stop         chan struct{}
	stopOnce     sync.Once
}

//	NewSQSChannel creates both queues if they do not exist yet.
func NewSQSChannel(sendQueue string, recvQueue string) (c *SQSChannel, err error) {
	service, err := getSQSService()
	if err != nil {
		return
	}
	seenIDs, err := lru.New(sqsDedupCacheSize)
	if err != nil {
		return
	}
	c = &SQSChannel{
		service: service,
		seenIDs: seenIDs,
		stop:    make(chan struct{}),
	}
	c.sendQueueURL, err = createQueue(service, sendQueue)
	if err != nil {
		c = nil
		return
	}
	c.recvQueueURL, err = createQueue(service, recvQueue)
	if err != nil {
		c = nil
		return
	}
	return
}

func createQueue(service *sqs.SQS, name string) (queueURL string, err error) {
	response, err := service.CreateQueue(&sqs.CreateQueueInput{
		QueueName: aws.String(name),
	})
	if err != nil {
		return
	}
	queueURL = *response.QueueUrl
	return
}

func (c *SQSChannel) Post(env Envelope, attachments [][]byte) (err error) {
	body, err := encodeSQSBody(env, attachments)
	if err != nil {
		return
	}
	_, err = c.service.SendMessage(&sqs.SendMessageInput{
		MessageBody: aws.String(body),
		QueueUrl:    aws.String(c.sendQueueURL),
	})
	return
}

func (c *SQSChannel) Bind(hook Hook) (err error) {
	c.Lock()
	defer c.Unlock()
	if c.hook != nil {
		return ErrChannelBound
	}
	c.hook = hook
	go RecoverToLog(c.receiveLoop, log)
	return
}

//	Close stops the receive loop. Envelopes still in flight are not
//	delivered; the channel contract allows this.
func (c *SQSChannel) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

type sqsReceived struct {
	messageID string
	body      string
}

func (c *SQSChannel) receiveLoop() {
	for {
		select {
		case <-c.stop:
			return
		default:
		}
		received, err := c.receiveAndDelete()
		if err != nil {
			log.Error("queue err:", err)
			<-time.After(time.Second)
			continue
		}
		for _, message := range received {
			c.handleReceived(message)
		}
	}
}

func (c *SQSChannel) receiveAndDelete() (received []sqsReceived, err error) {
	receiveResponse, err := c.service.ReceiveMessage(&sqs.ReceiveMessageInput{
		MaxNumberOfMessages: aws.Int64(sqsReceiveBatchSize),
		QueueUrl:            aws.String(c.recvQueueURL),
		WaitTimeSeconds:     aws.Int64(sqsReceiveWaitSeconds),
	})
	if err != nil {
		return
	}

	deleteRequestEntries := []*sqs.DeleteMessageBatchRequestEntry{}
	for i, message := range receiveResponse.Messages {
		received = append(received, sqsReceived{
			messageID: *message.MessageId,
			body:      *message.Body,
		})
		deleteRequestEntries = append(deleteRequestEntries, &sqs.DeleteMessageBatchRequestEntry{
			Id:            aws.String(strconv.Itoa(i)),
			ReceiptHandle: message.ReceiptHandle,
		})
	}
	if len(received) > 0 {
		_, err = c.service.DeleteMessageBatch(&sqs.DeleteMessageBatchInput{
			QueueUrl: aws.String(c.recvQueueURL),
			Entries:  deleteRequestEntries,
		})
		if err != nil {
			return
		}
	}
	return
}

func (c *SQSChannel) handleReceived(message sqsReceived) {
	if alreadySeen, _ := c.seenIDs.ContainsOrAdd(message.messageID, nil); alreadySeen {
		log.Info("dropping redelivered SQS message", message.messageID)
		return
	}
	env, attachments, err := decodeSQSBody(message.body)
	if err != nil {
		log.Error("dropping undecodable SQS message:", err)
		return
	}
	c.hook(env, attachments)
}
