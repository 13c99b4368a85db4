package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/mdlayher/vsock"

	"github.com/cloudx-io/sealedtender/core"
	"github.com/cloudx-io/sealedtender/procure"
	"github.com/cloudx-io/sealedtender/sealapi"
)

// Server terminates vsock connections and dispatches JSON requests to the
// procurement service. One request per connection; the client half-closes
// after writing.
type Server struct {
	port       uint32
	maxWorkers int
	svc        *procure.Service
	sink       *sealapi.VerifyingSink
}

func NewServer(port uint32, maxWorkers int, svc *procure.Service, sink *sealapi.VerifyingSink) *Server {
	return &Server{port: port, maxWorkers: maxWorkers, svc: svc, sink: sink}
}

func (s *Server) Start() error {
	listener, err := vsock.Listen(s.port, nil)
	if err != nil {
		return fmt.Errorf("failed to create vsock listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Printf("ERROR: Failed to close listener: %v", err)
		}
	}()

	log.Printf("INFO: tenderd listening on vsock port %d", s.port)

	semaphore := make(chan struct{}, s.maxWorkers)
	log.Printf("INFO: Worker pool initialized with %d max concurrent workers", s.maxWorkers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("ERROR: Failed to accept vsock connection: %v", err)
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }()
				s.handleConnection(c)
			}(conn)
		default:
			log.Printf("INFO: No workers available, rejecting connection (pool full)")
			if err := conn.Close(); err != nil {
				log.Printf("ERROR: Failed to close rejected connection: %v", err)
			}
		}
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Panic recovered in handleConnection: %v", r)
		}
		if err := conn.Close(); err != nil {
			log.Printf("ERROR: Failed to close connection: %v", err)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil {
		log.Printf("ERROR: Failed to read request: %v", err)
		return
	}

	var req request
	if err := json.Unmarshal(buf.Bytes(), &req); err != nil {
		log.Printf("ERROR: Failed to decode request: %v", err)
		s.writeResponse(conn, errResponse(fmt.Errorf("malformed request: %w", core.ErrValidation)))
		return
	}

	log.Printf("INFO: Handling %s request", req.Type)
	resp := s.dispatch(context.Background(), req)
	s.writeResponse(conn, resp)
}

func (s *Server) writeResponse(conn net.Conn, resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("ERROR: Failed to marshal response: %v", err)
		return
	}
	if _, err := conn.Write(data); err != nil {
		log.Printf("ERROR: Failed to write response: %v", err)
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	switch req.Type {
	case "register_supplier":
		if err := s.svc.RegisterSupplier(ctx, core.Principal(req.Caller), req.Name, req.Category); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)

	case "qualify_supplier":
		if err := s.svc.QualifySupplier(ctx, core.Principal(req.Caller), core.Principal(req.Principal), req.Score); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)

	case "create_tender":
		budget, err := core.ParseAmount(req.Budget)
		if err != nil {
			return errResponse(err)
		}
		deadline, err := parseDeadline(req.Deadline)
		if err != nil {
			return errResponse(fmt.Errorf("deadline %q is not RFC 3339: %w", req.Deadline, core.ErrValidation))
		}
		tenderID, err := s.svc.CreateTender(ctx, core.Principal(req.Caller), procure.TenderInput{
			Title:                 req.Title,
			Description:           req.Description,
			Budget:                budget,
			Deadline:              deadline,
			RequiresQualification: req.RequiresQualification,
		})
		if err != nil {
			return errResponse(err)
		}
		return okResponse(map[string]any{"tender_id": tenderID})

	case "submit_bid":
		amount, err := core.ParseAmount(req.Amount)
		if err != nil {
			return errResponse(err)
		}
		if err := s.svc.SubmitBid(ctx, core.Principal(req.Caller), req.TenderID, amount, req.Proposal); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)

	case "close_tender":
		if err := s.svc.CloseTender(ctx, core.Principal(req.Caller), req.TenderID); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)

	case "cancel_tender":
		if err := s.svc.CancelTender(ctx, core.Principal(req.Caller), req.TenderID); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)

	case "evaluate_tender":
		requestID, err := s.svc.EvaluateTender(ctx, core.Principal(req.Caller), req.TenderID)
		if err != nil {
			return errResponse(err)
		}
		return okResponse(map[string]any{"request_id": requestID})

	case "abandon_reveal":
		if err := s.svc.AbandonReveal(ctx, core.Principal(req.Caller), req.TenderID); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)

	case "reveal_callback":
		envelope, err := decodeEnvelope(req.RevealEnvelope)
		if err != nil {
			return errResponse(fmt.Errorf("reveal envelope is not base64: %w", core.ErrValidation))
		}
		if err := s.sink.Deliver(ctx, envelope); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)

	case "get_tender":
		tender, err := s.svc.GetTender(ctx, req.TenderID)
		if err != nil {
			return errResponse(err)
		}
		return okResponse(tender)

	case "get_supplier":
		sup, err := s.svc.GetSupplier(ctx, core.Principal(req.Principal))
		if err != nil {
			return errResponse(err)
		}
		return okResponse(sup)

	case "get_bid":
		bid, err := s.svc.GetBid(ctx, req.TenderID, core.Principal(req.Bidder))
		if err != nil {
			return errResponse(err)
		}
		return okResponse(bid)

	case "list_bidders":
		bidders, err := s.svc.ListBidders(ctx, req.TenderID)
		if err != nil {
			return errResponse(err)
		}
		return okResponse(map[string]any{"bidders": bidders})

	default:
		return errResponse(fmt.Errorf("unknown request type %q: %w", req.Type, core.ErrValidation))
	}
}
