package session

import "blockremental/internal/protocol"

// Welcome describes the session to a newly connected client.
func (s *Session) Welcome(tuningDigest string) protocol.WelcomeMsg {
	st := s.Snapshot()
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       s.cfg.ID,
		Params: protocol.SessionParams{
			UpdateRateHz:      s.cfg.UpdateRateHz,
			DrawRateHz:        s.cfg.DrawRateHz,
			AccrualIntervalMs: s.cfg.AccrualIntervalMs,
			StartingPoints:    s.cfg.StartingPoints,
			Width:             st.Width,
			Height:            st.Height,
			MaxWidth:          s.cfg.MaxWidth,
			MaxHeight:         s.cfg.MaxHeight,
		},
		Catalogs: protocol.CatalogDigests{
			Blocks:       protocol.DigestRef{Digest: s.cats.Blocks.Digest, Count: len(s.cats.Blocks.Order)},
			Upgrades:     protocol.DigestRef{Digest: s.cats.Upgrades.Digest, Count: len(s.cats.Upgrades.Order)},
			TuningDigest: tuningDigest,
		},
	}
}

// CatalogMsgs returns the block and upgrade catalogs, one message each.
func (s *Session) CatalogMsgs() []protocol.CatalogMsg {
	return []protocol.CatalogMsg{
		{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            "blocks",
			Digest:          s.cats.Blocks.Digest,
			Part:            1,
			TotalParts:      1,
			Data:            s.cats.BlockList(),
		},
		{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            "upgrades",
			Digest:          s.cats.Upgrades.Digest,
			Part:            1,
			TotalParts:      1,
			Data:            s.cats.UpgradeList(),
		},
	}
}
