package backend

import "github.com/univassist/chat-engine/internal/domain"

func feedbackFixture() domain.FeedbackRecord {
	return domain.FeedbackRecord{
		ChatID:         "u1_1",
		UserID:         "u1",
		Curso:          "Taller de Proyecto 1",
		Carrera:        "Ingeniería de Software",
		Satisfecho:     true,
		Comentario:     "",
		AssistantID:    "asst_1",
		ThreadID:       "thread_9",
		NumeroMensajes: 4,
	}
}
