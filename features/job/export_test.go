package job

import "time"

func (s *Service) SetPublishTimeout(d time.Duration) {
	s.publishTimeout = d
}
