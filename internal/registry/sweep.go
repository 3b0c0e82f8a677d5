package registry

import (
	"context"
	"log"
	"sync"
	"time"
)

// StartSweep запускает фоновую зачистку неактивных сессий и возвращает
// функцию остановки. onExpired вызывается для каждой снятой сессии — обычно
// чтобы удалить её части в chunk-хранилище.
func (r *Registry) StartSweep(ttl, every time.Duration, onExpired func(sessionID string)) func() {
	if ttl <= 0 || every <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(every)
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-ticker.C:
				expired, err := r.ExpireInactive(context.Background(), ttl)
				if err != nil {
					log.Printf("session sweep error: %v", err)
				}
				for _, id := range expired {
					if onExpired != nil {
						onExpired(id)
					}
				}
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			close(stop)
		})
	}
}
