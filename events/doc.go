// Package events publishes workflow lifecycle events. The Module reports
// every start, node and success stage of a flow to a Publisher;
// AMQPPublisher delivers them to a RabbitMQ topic exchange with publisher
// confirms. Publishing is best-effort and never changes the flow.
package events
