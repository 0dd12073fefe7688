// pushtail prints the notifications written to the topic, standing in for the
// push service during development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"github.com/OgheneDev/FlowChat/config"
	"github.com/OgheneDev/FlowChat/notify"
)

var (
	kafkaBrokers = flag.String("kafka-brokers", "127.0.0.1:9092", "comma separated kafka brokers")
	topic        = flag.String("topic", "flowchat-notifications", "notification topic")
	groupID      = flag.String("group-id", "flowchat-pushtail", "kafka consumer group")
)

// kafka-topics.sh --bootstrap-server localhost:9092 --topic flowchat-notifications --create

func main() {
	flag.Parse()
	defer glog.Flush()

	brokers := config.SplitList(*kafkaBrokers)
	if len(brokers) == 0 {
		fmt.Fprintln(os.Stderr, "--kafka-brokers is required.")
		os.Exit(2)
	}

	reader := notify.NewKafkaReader(brokers, *groupID, *topic)
	defer reader.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	c := notify.NewConsumer(reader, func(ctx context.Context, n *notify.Notification) error {
		return enc.Encode(n)
	})

	glog.Infof("pushtail: reading topic %s from %v", *topic, brokers)
	c.Run(ctx)
}
