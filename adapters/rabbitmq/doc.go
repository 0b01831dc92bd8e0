/*
Package rabbitmq binds rpc.Channel to AMQP 0-9-1.

Requests go to the default exchange with the destination queue as routing key
and carry the correlation id and reply queue in the AMQP properties, the way
NestJS RMQ responders expect. Replies are consumed from one process-exclusive
queue that is redeclared after every reconnect.
*/
package rabbitmq
