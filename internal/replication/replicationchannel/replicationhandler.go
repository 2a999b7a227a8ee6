/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package replicationchannel

import (
	"runtime"
	"time"

	"github.com/go-errors/errors"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/noctarius/postgres-event-streamer/internal/logging"
	"github.com/noctarius/postgres-event-streamer/internal/replication/replicationconnection"
	"github.com/noctarius/postgres-event-streamer/internal/replication/transactional"
	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
	"github.com/noctarius/postgres-event-streamer/spi/replicationcontext"
	"github.com/noctarius/postgres-event-streamer/spi/stream"
)

// replicationHandler pumps one replication connection: it reads frames
// off the wire, sends periodic standby status updates, decodes XLogData
// payloads, and publishes the change events the assembler produces.
type replicationHandler struct {
	logger             *logging.Logger
	replicationContext replicationcontext.ReplicationContext
	assembler          *transactional.TransactionAssembler
	publisher          stream.Publisher
	statusInterval     time.Duration
	lastTransactionId  *uint32
}

func newReplicationHandler(
	replicationContext replicationcontext.ReplicationContext,
	assembler *transactional.TransactionAssembler,
	publisher stream.Publisher, statusInterval time.Duration,
) (*replicationHandler, error) {

	logger, err := logging.NewLogger("ReplicationHandler")
	if err != nil {
		return nil, err
	}

	return &replicationHandler{
		logger:             logger,
		replicationContext: replicationContext,
		assembler:          assembler,
		publisher:          publisher,
		statusInterval:     statusInterval,
	}, nil
}

// runHandler drives the read loop until the shutdown channel fires
// (clean == true) or the stream breaks (clean == false, err set). Any
// error exit leaves the server unacknowledged for the frames in flight,
// the next session replays them from the confirmed position.
func (rh *replicationHandler) runHandler(
	connection *replicationconnection.ReplicationConnection, shutdown <-chan bool,
) (clean bool, err error) {

	nextStandbyMessageDeadline := time.Now().Add(rh.statusInterval)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-shutdown:
			rh.logger.Infoln("Shutting down replication handler")
			if err := connection.SendStatusUpdate(); err != nil {
				rh.logger.Warnf("final status update failed: %s", err)
			}
			return true, nil
		default:
		}

		if time.Now().After(nextStandbyMessageDeadline) {
			if err := connection.SendStatusUpdate(); err != nil {
				return false, errors.Wrap(err, 0)
			}
			nextStandbyMessageDeadline = time.Now().Add(rh.statusInterval)
		}

		rawMsg, err := connection.ReceiveMessage(nextStandbyMessageDeadline)
		if err != nil {
			return false, errors.Wrap(err, 0)
		}

		// Deadline reached without traffic, loop around to send the
		// standby status update
		if rawMsg == nil {
			continue
		}

		if errMsg, ok := rawMsg.(*pgproto3.ErrorResponse); ok {
			return false, errors.Errorf(
				"received error response from server: %s (%s)", errMsg.Message, errMsg.Code,
			)
		}

		msg, ok := rawMsg.(*pgproto3.CopyData)
		if !ok {
			rh.logger.Warnf("Received unexpected message: %T", rawMsg)
			continue
		}

		switch msg.Data[0] {
		case pglogrepl.PrimaryKeepaliveMessageByteID:
			pkm, err := pglogrepl.ParsePrimaryKeepaliveMessage(msg.Data[1:])
			if err != nil {
				return false, errors.Wrap(err, 0)
			}
			if err := rh.handleKeepalive(pkm); err != nil {
				return false, err
			}
			if pkm.ReplyRequested {
				nextStandbyMessageDeadline = time.Time{}
			}

		case pglogrepl.XLogDataByteID:
			xld, err := pglogrepl.ParseXLogData(msg.Data[1:])
			if err != nil {
				return false, errors.Wrap(err, 0)
			}
			if err := rh.handleXLogData(xld); err != nil {
				return false, err
			}
		}
	}
}

// handleKeepalive advances the received position to the server's WAL
// end so idle periods still move the reported standby position forward.
// Stale or zero WAL ends are skipped, keepalives may trail the data
// stream.
func (rh *replicationHandler) handleKeepalive(
	pkm pglogrepl.PrimaryKeepaliveMessage,
) error {

	serverWALEnd := pgtypes.LSN(pkm.ServerWALEnd)
	if serverWALEnd == 0 || serverWALEnd < rh.replicationContext.LastReceivedLSN() {
		return nil
	}
	return rh.replicationContext.Observe(serverWALEnd)
}

func (rh *replicationHandler) handleXLogData(
	xld pglogrepl.XLogData,
) error {

	endPosition := pgtypes.LSN(xld.WALStart) + pgtypes.LSN(len(xld.WALData))
	if err := rh.replicationContext.Observe(endPosition); err != nil {
		return err
	}

	msg, err := pgtypes.ParseXLogData(xld.WALData, rh.lastTransactionId)
	if err != nil {
		return err
	}
	rh.trackTransaction(msg)

	events, err := rh.assembler.Handle(pgtypes.LSN(xld.WALStart), msg)
	if err != nil {
		return err
	}

	for _, event := range events {
		if err := rh.publisher.Publish(event); err != nil {
			return err
		}
	}
	return nil
}

func (rh *replicationHandler) trackTransaction(
	msg pgtypes.Message,
) {

	switch m := msg.(type) {
	case *pgtypes.BeginMessage:
		xid := m.Xid
		rh.lastTransactionId = &xid
		rh.replicationContext.SetLastTransactionId(m.Xid)
		rh.replicationContext.SetLastBeginLSN(m.FinalLSN)

	case *pgtypes.CommitMessage:
		rh.lastTransactionId = nil
		rh.replicationContext.SetLastCommitLSN(m.CommitLSN)
	}
}
